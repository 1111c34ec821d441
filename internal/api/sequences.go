package api

import (
	"errors"
	"net/http"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/httputil"
	"github.com/stillpoint/drip/internal/service/sequencedef"

	"github.com/go-chi/chi/v5"
)

// ListSequences returns sequence definitions without steps.
func (h *Handlers) ListSequences(w http.ResponseWriter, r *http.Request) {
	f := sequencedef.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	seqs, total, err := h.sequences.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"sequences": seqs, "total": total})
}

// GetSequence returns one sequence with its steps.
func (h *Handlers) GetSequence(w http.ResponseWriter, r *http.Request) {
	seq, err := h.sequences.Get(r.Context(), chi.URLParam(r, "id"))
	if err == sequencedef.ErrNotFound {
		httputil.NotFound(w, "sequence not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, seq)
}

// CreateSequence stores a new definition. Steps take their position from
// payload order.
func (h *Handlers) CreateSequence(w http.ResponseWriter, r *http.Request) {
	var in sequencedef.SequenceInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	seq, err := h.sequences.Create(r.Context(), in)
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.Created(w, seq)
}

// UpdateSequence replaces an existing definition wholesale.
func (h *Handlers) UpdateSequence(w http.ResponseWriter, r *http.Request) {
	var in sequencedef.SequenceInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	seq, err := h.sequences.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.OK(w, seq)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetSequenceStatus activates, pauses, or retires a sequence.
func (h *Handlers) SetSequenceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	err := h.sequences.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.SequenceStatus(req.Status))
	if err != nil {
		writeSequenceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": req.Status})
}

func writeSequenceError(w http.ResponseWriter, err error) {
	switch {
	case err == sequencedef.ErrNotFound:
		httputil.NotFound(w, "sequence not found")
	case err == sequencedef.ErrDuplicateTrigger:
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, sequencedef.ErrInvalidSequence):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
