package auth

import (
	"net/http"

	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/transport"
	"github.com/softeno/permission-template/pkg/logger"
)

type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

// Handler guards routes with bearer tokens. A nil verifier disables
// authentication entirely: every request runs as the system actor.
type Handler struct {
	*transport.BaseHandler
	verifier TokenVerifier
}

func NewHandler(baseHandler *transport.BaseHandler, verifier TokenVerifier) *Handler {
	return &Handler{BaseHandler: baseHandler, verifier: verifier}
}

func (h *Handler) Enabled() bool {
	return h.verifier != nil
}

// AuthMiddleware verifies the bearer token and stores the caller's subject
// and roles on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := transport.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			h.WriteError(w, internal.ErrMissingToken)
			return
		}

		principal, err := h.verifier.Verify(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err, "path", r.URL.Path)
			h.HandleServiceError(w, err)
			return
		}

		ctx := internal.ContextWithActor(r.Context(), principal.Subject)
		ctx = internal.ContextWithRoles(ctx, principal.Roles)
		ctx = logger.With(ctx, "actor", principal.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers lacking role with 403. It must run after
// AuthMiddleware.
func (h *Handler) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			principal := &Principal{
				Subject: internal.ActorFromContext(r.Context()),
				Roles:   internal.RolesFromContext(r.Context()),
			}
			if !principal.HasRole(role) {
				h.Logger.Warn("access denied: missing role",
					"actor", principal.Subject,
					"required_role", role,
					"roles", principal.Roles)
				h.WriteError(w, internal.ErrInsufficientRoles)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
