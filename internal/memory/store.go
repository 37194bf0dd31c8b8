// Package memory is a process-local backend for the ledger. Units of work run
// against a private copy of the state that replaces the shared one on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"
)

// Compile-time check: *Store must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Store)(nil)

type balanceKey struct {
	account string
	asset   string
}

type state struct {
	config   *models.ProtocolConfig
	treasury *models.Treasury
	receipts map[string]models.DepositReceipt
	options  map[string]models.OptionRecord
	events   []models.LedgerEvent
	balances map[balanceKey]uint64
	claims   map[string]models.ClaimInstrument
}

func newState() *state {
	return &state{
		receipts: make(map[string]models.DepositReceipt),
		options:  make(map[string]models.OptionRecord),
		balances: make(map[balanceKey]uint64),
		claims:   make(map[string]models.ClaimInstrument),
	}
}

func (s *state) clone() *state {
	c := &state{
		receipts: make(map[string]models.DepositReceipt, len(s.receipts)),
		options:  make(map[string]models.OptionRecord, len(s.options)),
		events:   s.events[:len(s.events):len(s.events)],
		balances: make(map[balanceKey]uint64, len(s.balances)),
		claims:   make(map[string]models.ClaimInstrument, len(s.claims)),
	}
	if s.config != nil {
		cfg := *s.config
		c.config = &cfg
	}
	if s.treasury != nil {
		treasury := *s.treasury
		c.treasury = &treasury
	}
	for k, v := range s.receipts {
		c.receipts[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	return c
}

type unitKey struct{}

func withUnit(ctx context.Context, s *state) context.Context {
	return context.WithValue(ctx, unitKey{}, s)
}

func unitFromContext(ctx context.Context) *state {
	s, _ := ctx.Value(unitKey{}).(*state)
	return s
}

// Store keeps every record in memory behind one mutex, so units of work are
// fully serialized.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// Atomically runs fn against a copy of the state and publishes the copy only
// when fn succeeds. A nested call joins the unit already carried by ctx.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if working := unitFromContext(ctx); working != nil {
		return fn(ctx, &memTx{state: working})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(withUnit(ctx, working), &memTx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) Close() {}

// Balance returns the committed balance of asset held by account.
func (s *Store) Balance(account, asset string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.balances[balanceKey{account: account, asset: asset}]
}

// Claim returns the committed view of a claim instrument.
func (s *Store) Claim(claimTokenId string) (models.ClaimInstrument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.state.claims[claimTokenId]
	return claim, ok
}

// memTx implements store.Tx over a working copy.
type memTx struct {
	state *state
}

func (t *memTx) LoadConfig(_ context.Context) (*models.ProtocolConfig, error) {
	if t.state.config == nil {
		return nil, store.ErrNotFound
	}
	cfg := *t.state.config
	return &cfg, nil
}

func (t *memTx) InsertConfig(_ context.Context, cfg *models.ProtocolConfig) error {
	if t.state.config != nil {
		return store.ErrAlreadyExists
	}
	cfg.Version = 1
	stored := *cfg
	t.state.config = &stored
	return nil
}

func (t *memTx) SaveConfig(_ context.Context, cfg *models.ProtocolConfig) error {
	if t.state.config == nil {
		return store.ErrNotFound
	}
	if t.state.config.Version != cfg.Version {
		return store.ErrConcurrentModification
	}
	cfg.Version++
	stored := *cfg
	t.state.config = &stored
	return nil
}

func (t *memTx) LoadTreasury(_ context.Context) (*models.Treasury, error) {
	if t.state.treasury == nil {
		return nil, store.ErrNotFound
	}
	treasury := *t.state.treasury
	return &treasury, nil
}

func (t *memTx) InsertTreasury(_ context.Context, treasury *models.Treasury) error {
	if t.state.treasury != nil {
		return store.ErrAlreadyExists
	}
	treasury.Version = 1
	stored := *treasury
	t.state.treasury = &stored
	return nil
}

func (t *memTx) SaveTreasury(_ context.Context, treasury *models.Treasury) error {
	if t.state.treasury == nil {
		return store.ErrNotFound
	}
	if t.state.treasury.Version != treasury.Version {
		return store.ErrConcurrentModification
	}
	treasury.Version++
	stored := *treasury
	t.state.treasury = &stored
	return nil
}

func (t *memTx) LoadReceipt(_ context.Context, depositor string) (*models.DepositReceipt, error) {
	receipt, ok := t.state.receipts[depositor]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &receipt, nil
}

func (t *memTx) SaveReceipt(_ context.Context, receipt *models.DepositReceipt) error {
	t.state.receipts[receipt.Depositor] = *receipt
	return nil
}

func (t *memTx) ListStaleReceipts(_ context.Context, now int64) ([]models.DepositReceipt, error) {
	var stale []models.DepositReceipt
	for _, receipt := range t.state.receipts {
		if receipt.Initialized && now > receipt.Expiration {
			stale = append(stale, receipt)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].Expiration != stale[j].Expiration {
			return stale[i].Expiration < stale[j].Expiration
		}
		return stale[i].Depositor < stale[j].Depositor
	})
	return stale, nil
}

func (t *memTx) LoadOption(_ context.Context, claimTokenId string) (*models.OptionRecord, error) {
	option, ok := t.state.options[claimTokenId]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &option, nil
}

func (t *memTx) InsertOption(_ context.Context, option *models.OptionRecord) error {
	if _, ok := t.state.options[option.ClaimTokenId]; ok {
		return store.ErrAlreadyExists
	}
	t.state.options[option.ClaimTokenId] = *option
	return nil
}

func (t *memTx) SaveOption(_ context.Context, option *models.OptionRecord) error {
	if _, ok := t.state.options[option.ClaimTokenId]; !ok {
		return store.ErrNotFound
	}
	t.state.options[option.ClaimTokenId] = *option
	return nil
}

func (t *memTx) DeleteOption(_ context.Context, claimTokenId string) error {
	if _, ok := t.state.options[claimTokenId]; !ok {
		return store.ErrNotFound
	}
	delete(t.state.options, claimTokenId)
	return nil
}

func (t *memTx) ListOptions(_ context.Context, filter store.OptionFilter) ([]models.OptionRecord, error) {
	var options []models.OptionRecord
	for _, option := range t.state.options {
		if filter.SpentOnly && !option.Spent() {
			continue
		}
		if filter.Owner != "" && option.Owner != filter.Owner {
			continue
		}
		options = append(options, option)
	}
	sort.Slice(options, func(i, j int) bool {
		if !options[i].CreatedAt.Equal(options[j].CreatedAt) {
			return options[i].CreatedAt.Before(options[j].CreatedAt)
		}
		return options[i].ClaimTokenId < options[j].ClaimTokenId
	})
	if filter.Limit > 0 && len(options) > filter.Limit {
		options = options[:filter.Limit]
	}
	return options, nil
}

func (t *memTx) AppendEvent(_ context.Context, event *models.LedgerEvent) error {
	t.state.events = append(t.state.events, *event)
	return nil
}

// ListEvents returns events newest first.
func (t *memTx) ListEvents(_ context.Context, subject string, limit int) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	for i := len(t.state.events) - 1; i >= 0; i-- {
		event := t.state.events[i]
		if subject != "" && event.Subject != subject {
			continue
		}
		events = append(events, event)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}
