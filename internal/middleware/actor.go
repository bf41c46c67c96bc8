package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	apperrors "rfxlicense/internal/errors"
	"rfxlicense/internal/payment"
)

type actorKey struct{}

// ActorHeader carries the caller identity. Who is allowed to present a
// given ID is decided upstream (the chat platform, a gateway); this service
// only maps IDs onto roles.
const ActorHeader = "X-Actor-ID"

// AdminChecker answers whether an actor ID carries the admin role.
type AdminChecker interface {
	IsAdmin(actorID string) bool
}

// Actor resolves the caller into a payment.Actor and stores it in the
// request context. Requests without an actor header get an anonymous actor
// with no roles.
func Actor(admins AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := payment.Actor{ID: r.Header.Get(ActorHeader)}
			if actor.ID != "" && admins.IsAdmin(actor.ID) {
				actor.Roles = []string{payment.RoleAdmin}
			}
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor resolved for this request.
func ActorFromContext(ctx context.Context) payment.Actor {
	if a, ok := ctx.Value(actorKey{}).(payment.Actor); ok {
		return a
	}
	return payment.Actor{}
}

// AdminOnly rejects requests whose actor lacks the admin role.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromContext(r.Context())
		if !actor.HasRole(payment.RoleAdmin) {
			problem := apperrors.NewProblemDetails(
				http.StatusForbidden,
				"/errors/forbidden",
				"Forbidden",
				"Admin role required",
				r.URL.Path,
			).WithExtension("request_id", GetReqID(r.Context()))
			render.Render(w, r, problem)
			return
		}
		next.ServeHTTP(w, r)
	})
}
