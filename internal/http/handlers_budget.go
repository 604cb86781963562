package http

import (
	"net/http"
	"strings"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListBudgets(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var p budgetPayload
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := p.input()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	b, err := s.ledger.CreateBudget(r.Context(), in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/budgets/"+b.ID).
		Body(b).
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteBudget(r.Context(), strings.TrimSpace(r.PathValue("id"))); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NoContent().Write(w)
}

// handleBudgetProgress reports every budget against its linked expenses.
func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.reports.Progress(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(newProgressViews(progress)).Write(w)
}
