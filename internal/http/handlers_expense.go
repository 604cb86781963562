package http

import (
	"net/http"
	"strings"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListExpenses(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var p expensePayload
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := p.input()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	e, err := s.ledger.CreateExpense(r.Context(), in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Body(e).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	var p expensePayload
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := p.input()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	e, err := s.ledger.UpdateExpense(r.Context(), id, in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteExpense(r.Context(), strings.TrimSpace(r.PathValue("id"))); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NoContent().Write(w)
}
