package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defistate/defistate-vault-go/pricefeed"
	"github.com/defistate/defistate-vault-go/vault"
)

// apiServer serves the read-only introspection API. All endpoints are view
// calls into the ledger; nothing here mutates state.
type apiServer struct {
	ledger *vault.Ledger
	logger *slog.Logger
	router http.Handler
}

func newAPIServer(ledger *vault.Ledger, logger *slog.Logger) *apiServer {
	s := &apiServer{ledger: ledger, logger: logger}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(api chi.Router) {
		api.Get("/vaults/{id}", s.getVault)
		api.Get("/vaults/{id}/health", s.getHealth)
		api.Get("/feeindex", s.getFeeIndex)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

func (s *apiServer) Handler() http.Handler { return s.router }

func (s *apiServer) vaultID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid vault id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *apiServer) getVault(w http.ResponseWriter, r *http.Request) {
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}
	v, err := s.ledger.Vault(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, v)
}

func (s *apiServer) getHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := s.vaultID(w, r)
	if !ok {
		return
	}
	report, err := s.ledger.Health(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, report)
}

func (s *apiServer) getFeeIndex(w http.ResponseWriter, r *http.Request) {
	index, err := s.ledger.FeeIndex()
	if err != nil {
		s.writeError(w, err)
		return
	}
	rate, err := s.ledger.FeeRateBps()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"index":   index.String(),
		"rateBps": rate,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrVaultNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pricefeed.ErrPriceUnavailable):
		// Valuations fail closed on price outages; tell callers to retry.
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
