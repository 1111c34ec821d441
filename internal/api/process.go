package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/stillpoint/drip/internal/pkg/httputil"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// HandleProcess runs one processor batch on behalf of an external
// scheduler (cron hitting POST /process). The shared secret travels in
// the X-Process-Secret header.
//
// Status contract: 401 for a bad secret, 500 only when the batch itself
// could not run, 200 otherwise — individual send failures are reported
// inside the summary, not via the status code, so the scheduler never
// retries a batch that partially succeeded.
func (h *Handlers) HandleProcess(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Process-Secret")
	if h.processSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.processSecret)) != 1 {
		httputil.Unauthorized(w, "invalid process secret")
		return
	}

	summary, err := h.runner.RunOnce(r.Context())
	if err != nil {
		logger.Error("api: process run failed", "error", err)
		httputil.InternalError(w, err)
		return
	}
	if summary == nil {
		// Another instance holds the run lock; its batch covers this tick.
		httputil.OK(w, map[string]interface{}{"skipped": true})
		return
	}
	httputil.OK(w, summary)
}
