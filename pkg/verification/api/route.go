package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resumeworks/resume-verify/pkg/gate"
	"github.com/resumeworks/resume-verify/pkg/ratelimit"
)

// Routes mounts the verification surface. The redeem link is public and
// rate-limited per IP; issuance and status require an authenticated (but not
// yet verified) identity.
func Routes(h *Handler, g gate.Middleware, limit *ratelimit.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(limit.Handler)
		r.Get("/verification/redeem", h.Redeem)
	})

	r.Group(func(r chi.Router) {
		r.Use(limit.Handler)
		r.Use(g.Authenticate)
		r.Post("/verification/tokens", h.IssueToken)
		r.Get("/verification/status", h.Status)
	})

	return r
}
