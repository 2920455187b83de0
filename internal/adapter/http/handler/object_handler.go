package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txconsumer/internal/adapter/http/dto"
	"github.com/iho/txconsumer/internal/usecase"
)

// ObjectStateService returns the processing history of source objects.
type ObjectStateService interface {
	GetObjectState(ctx context.Context, objectKey string) (*usecase.ObjectHistory, error)
}

// ObjectHandler handles source object requests.
type ObjectHandler struct {
	service ObjectStateService
}

// NewObjectHandler creates a new ObjectHandler.
func NewObjectHandler(service ObjectStateService) *ObjectHandler {
	return &ObjectHandler{service: service}
}

// GetState handles GET /objects/{key}/state.
func (h *ObjectHandler) GetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "object key is required", "")
		return
	}

	history, err := h.service.GetObjectState(r.Context(), key)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get object state", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ObjectStateFromDomain(history))
}
