// Package valuation maps deposited value to the quantity of notes and
// protocol tokens issued against it.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveNav = errors.New("valuation: nav must be positive")
	ErrTokenOverflow  = errors.New("valuation: token quantity exceeds uint64")
)

// Snapshot is the protocol state a policy may price against.
type Snapshot struct {
	TotalDeposited uint64
	Now            int64
}

// Policy returns the net asset value of one issued token.
type Policy interface {
	Nav(ctx context.Context, snapshot Snapshot) (decimal.Decimal, error)
}

// FixedNav always prices at Value.
type FixedNav struct {
	Value decimal.Decimal
}

// Unit is the 1:1 policy.
func Unit() FixedNav {
	return FixedNav{Value: decimal.NewFromInt(1)}
}

func (f FixedNav) Nav(_ context.Context, _ Snapshot) (decimal.Decimal, error) {
	return f.Value, nil
}

// ExprPolicy evaluates a compiled expr-lang expression. The expression sees
// total_deposited and now as integers and must yield a number or a decimal string.
type ExprPolicy struct {
	expression string
	program    *exprvm.Program
}

// NewExprPolicy compiles expression once; evaluation reuses the program.
func NewExprPolicy(expression string) (*ExprPolicy, error) {
	if expression == "" {
		return nil, fmt.Errorf("valuation: expression must not be empty")
	}
	program, err := exprlang.Compile(expression, exprlang.Env(environment(Snapshot{})))
	if err != nil {
		return nil, fmt.Errorf("valuation: compile %q: %w", expression, err)
	}
	return &ExprPolicy{expression: expression, program: program}, nil
}

// Expression returns the source the policy was compiled from.
func (p *ExprPolicy) Expression() string { return p.expression }

func (p *ExprPolicy) Nav(_ context.Context, snapshot Snapshot) (decimal.Decimal, error) {
	out, err := exprlang.Run(p.program, environment(snapshot))
	if err != nil {
		return decimal.Zero, fmt.Errorf("valuation: evaluate %q: %w", p.expression, err)
	}
	nav, err := toDecimal(out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("valuation: %q: %w", p.expression, err)
	}
	return nav, nil
}

func environment(s Snapshot) map[string]any {
	return map[string]any{
		"total_deposited": int64(clampInt64(s.TotalDeposited)),
		"now":             s.Now,
	}
}

func clampInt64(v uint64) uint64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return v
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported result type %T", v)
	}
}

// TokensFor returns floor(value / nav).
func TokensFor(value uint64, nav decimal.Decimal) (uint64, error) {
	if !nav.IsPositive() {
		return 0, ErrNonPositiveNav
	}
	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0)
	quotient, _ := amount.QuoRem(nav, 0)
	tokens := quotient.BigInt()
	if tokens.Sign() < 0 || !tokens.IsUint64() {
		return 0, ErrTokenOverflow
	}
	return tokens.Uint64(), nil
}
