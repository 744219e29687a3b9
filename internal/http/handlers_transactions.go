package http

import (
	"errors"
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/session"
)

type transactionsResponse struct {
	Version      uint64             `json:"version"`
	Transactions []core.Transaction `json:"transactions"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(transactionsResponse{
		Version:      s.deps.Ledger.Version(),
		Transactions: s.deps.Ledger.Transactions(),
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.deps.Ledger.Get(r.PathValue("id"))
	if !ok {
		NotFoundError(core.ErrNotFound.Error()).Write(w)
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tx, err := ParseTransactionInput(p)
	if err != nil {
		s.fail(w, r, "create", err)
		return
	}
	if tx.Currency == "" {
		tx.Currency = s.deps.Currency
	}
	saved, err := s.deps.Ledger.Add(r.Context(), tx)
	if err != nil {
		s.fail(w, r, "create", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.TransactionAttrs(ownerFrom(r.Context()), saved)...)
	NewResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tx, err := ParseTransactionInput(p)
	if err != nil {
		s.fail(w, r, "update", err)
		return
	}
	if tx.Currency == "" {
		tx.Currency = s.deps.Currency
	}
	saved, err := s.deps.Ledger.Update(r.Context(), r.PathValue("id"), tx)
	if err != nil {
		s.fail(w, r, "update", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction updated",
		log.TransactionAttrs(ownerFrom(r.Context()), saved)...)
	NewResponse().JSON(saved).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Ledger.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "delete", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldOwnerID, ownerFrom(r.Context()),
		log.FieldTransactionID, id)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleReload runs a load synchronously and returns the collection. A
// load overtaken by a newer one still answers with the current data.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.Load(r.Context()); err != nil && !errors.Is(err, session.ErrStaleLoad) {
		s.fail(w, r, "reload", err)
		return
	}
	s.handleListTransactions(w, r)
}
