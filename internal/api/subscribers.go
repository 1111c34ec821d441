package api

import (
	"net/http"
	"strconv"

	"github.com/stillpoint/drip/internal/pkg/httputil"
	"github.com/stillpoint/drip/internal/pkg/logger"
	"github.com/stillpoint/drip/internal/service/enrollment"
	"github.com/stillpoint/drip/internal/service/subscriber"

	"github.com/go-chi/chi/v5"
)

type subscribeRequest struct {
	Email      string `json:"email"`
	Source     string `json:"source"`
	FirstName  string `json:"first_name"`
	TriggerKey string `json:"trigger_key"`
}

// CreateSubscriber subscribes an address and, when a trigger key is
// supplied, enrolls it into the matching sequence. Enrollment problems
// never fail the response: the subscription is already durable, and the
// marketing site must not show an error for a side effect.
func (h *Handlers) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	sub, err := h.subscribers.Subscribe(r.Context(), req.Email, req.Source, req.FirstName)
	if err == subscriber.ErrInvalidEmail {
		httputil.BadRequest(w, "invalid email address")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	resp := map[string]interface{}{"subscriber": sub}
	if req.TriggerKey != "" {
		result, err := h.enrollments.Enroll(r.Context(), sub.ID, req.TriggerKey)
		if err != nil {
			logger.Error("api: enroll on subscribe failed",
				"subscriber_id", sub.ID, "trigger_key", req.TriggerKey, "error", err)
			resp["enrollment"] = &enrollment.EnrollResult{Outcome: "error"}
		} else {
			resp["enrollment"] = result
		}
	}
	httputil.Created(w, resp)
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

// Unsubscribe flips the subscriber to unsubscribed and cancels active
// enrollments. Responds 200 for unknown addresses too, so the endpoint
// does not leak which emails exist.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}
	if err := h.subscribers.Unsubscribe(r.Context(), req.Email); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "unsubscribed"})
}

// ListSubscribers returns the paginated subscriber list for the admin UI.
func (h *Handlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	f := subscriber.ListFilter{
		Status: r.URL.Query().Get("status"),
		Source: r.URL.Query().Get("source"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	subs, total, err := h.subscribers.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"subscribers": subs, "total": total})
}

// GetSubscriber returns one subscriber by ID.
func (h *Handlers) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscribers.Get(r.Context(), chi.URLParam(r, "id"))
	if err == subscriber.ErrNotFound {
		httputil.NotFound(w, "subscriber not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, sub)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
