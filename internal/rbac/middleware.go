package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/billtrack/billtrack/internal/platform/httpx"
	"github.com/billtrack/billtrack/internal/shared"
)

// ActorLoader resolves an actor id stored in the session.
type ActorLoader interface {
	GetActor(ctx context.Context, id int64) (shared.Actor, error)
}

// Middleware wires identity resolution and capability checks for HTTP handlers.
type Middleware struct {
	Actors ActorLoader
	Logger *slog.Logger
}

// Authenticate resolves the session actor into the request context and
// rejects anonymous requests.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.ActorID() == 0 {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		actor, err := m.Actors.GetActor(r.Context(), sess.ActorID())
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("rbac resolve actor", slog.Int64("actor_id", sess.ActorID()), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// Require rejects requests whose actor lacks any of the capabilities.
func (m Middleware) Require(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			for _, c := range caps {
				if Allows(actor, c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			httpx.RespondError(w, Check(actor, caps[0]))
		})
	}
}

// CurrentActor returns the actor resolved by Authenticate.
func CurrentActor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	return actor, nil
}
