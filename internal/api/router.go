package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires the HTTP surface of the ledger.
type RouterConfig struct {
	Service        *LedgerService
	Authenticator  *Authenticator
	MetricsHandler http.Handler
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	h := &handlers{svc: cfg.Service}
	r.Get("/healthz", h.health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	auth := cfg.Authenticator
	if auth == nil {
		auth = NewAuthenticator("")
	}

	r.Route("/v1", func(v1 chi.Router) {
		h.mount(v1)
		v1.Group(func(user chi.Router) {
			user.Use(auth.Middleware)
			h.mountUser(user)
		})
		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.Middleware)
			h.mountAdmin(admin)
		})
	})
	return r
}

// mount registers the read-only routes.
func (h *handlers) mount(r chi.Router) {
	r.Get("/receipts/stale", h.staleReceipts)
	r.Get("/receipts/{depositor}", h.getReceipt)
	r.Get("/options", h.listOptions)
	r.Get("/options/{claimTokenId}", h.getOption)
	r.Get("/config", h.getConfig)
	r.Get("/treasury", h.getTreasury)
	r.Get("/reconcile", h.reconcile)
	r.Get("/events", h.listEvents)
	r.Get("/accounts/{accountId}/balances", h.balances)
	r.Get("/accounts/{accountId}/assets/{asset}/transactions", h.history)
}

// mountUser registers the routes that act for the authenticated caller.
func (h *handlers) mountUser(r chi.Router) {
	r.Post("/deposits", h.deposit)
	r.Post("/options", h.issueOption)
	r.Post("/options/{claimTokenId}/convert", h.convert)
	r.Post("/options/{claimTokenId}/transfer", h.transfer)
}

func (h *handlers) mountAdmin(r chi.Router) {
	r.Post("/locks", h.updateLocks)
	r.Post("/options/{claimTokenId}/close", h.closeOption)
}
