package api

import (
	"net/http"

	"github.com/stillpoint/drip/internal/pkg/httputil"
	"github.com/stillpoint/drip/internal/service/enrollment"

	"github.com/go-chi/chi/v5"
)

// ListEnrollments returns enrollments filtered by subscriber, sequence,
// or status.
func (h *Handlers) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	f := enrollment.ListFilter{
		SubscriberID: r.URL.Query().Get("subscriber_id"),
		SequenceID:   r.URL.Query().Get("sequence_id"),
		Status:       r.URL.Query().Get("status"),
		Limit:        queryInt(r, "limit", 50),
		Offset:       queryInt(r, "offset", 0),
	}
	list, total, err := h.enrollments.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"enrollments": list, "total": total})
}

// GetEnrollment returns one enrollment.
func (h *Handlers) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := h.enrollments.Get(r.Context(), chi.URLParam(r, "id"))
	if err == enrollment.ErrNotFound {
		httputil.NotFound(w, "enrollment not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, e)
}

// GetEnrollmentLog returns the delivery log for one enrollment in step
// order.
func (h *Handlers) GetEnrollmentLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.enrollments.Get(r.Context(), id); err != nil {
		if err == enrollment.ErrNotFound {
			httputil.NotFound(w, "enrollment not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	log, err := h.enrollments.SendLog(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"entries": log})
}
