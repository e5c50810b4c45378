package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/velora/checkout/internal/domain/contact"
)

type contactRequest struct {
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Company   string `json:"company,omitempty"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Message   string `json:"message"`
}

// CreateContactMessage handles POST /contact.
func (h *Handler) CreateContactMessage(w http.ResponseWriter, r *http.Request) {
	var body contactRequest
	if !decodeBody(w, r, &body) {
		return
	}

	m := &contact.Message{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Surname:   body.Surname,
		Company:   body.Company,
		Email:     body.Email,
		Telephone: body.Telephone,
		Message:   body.Message,
	}
	if err := m.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_message", err.Error())
		return
	}

	if err := h.contacts.Create(r.Context(), m); err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, map[string]string{"id": m.ID})
}
