package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/billtrack/billtrack/internal/shared"
)

type stubActors map[int64]shared.Actor

func (s stubActors) GetActor(_ context.Context, id int64) (shared.Actor, error) {
	actor, ok := s[id]
	if !ok {
		return shared.Actor{}, shared.ErrNotFound
	}
	return actor, nil
}

type failingActors struct{}

func (failingActors) GetActor(context.Context, int64) (shared.Actor, error) {
	return shared.Actor{}, errors.New("db down")
}

func serve(h http.Handler, sess *shared.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionFor(id int64) *shared.Session {
	sess := &shared.Session{ID: "test"}
	sess.SetActor(id)
	return sess
}

func TestAuthenticateResolvesActor(t *testing.T) {
	m := Middleware{Actors: stubActors{7: {ID: 7, Role: shared.RoleUser, AccountStatus: shared.AccountActive}}}
	var seen shared.Actor
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := CurrentActor(r)
		require.NoError(t, err)
		seen = actor
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, sessionFor(7))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, int64(7), seen.ID)
}

func TestAuthenticateRejectsAnonymousAndUnknown(t *testing.T) {
	m := Middleware{Actors: stubActors{}}
	h := m.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	require.Equal(t, http.StatusUnauthorized, serve(h, nil).Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, sessionFor(0)).Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, sessionFor(99)).Code)

	failing := Middleware{Actors: failingActors{}}.Authenticate(http.NotFoundHandler())
	require.Equal(t, http.StatusInternalServerError, serve(failing, sessionFor(1)).Code)
}

func TestRequireChecksCapabilities(t *testing.T) {
	actors := stubActors{
		1: {ID: 1, Role: shared.RoleUser, AccountStatus: shared.AccountActive},
		2: {ID: 2, Role: shared.RoleSupervisor, AccountStatus: shared.AccountActive},
		3: {ID: 3, Role: shared.RoleSupervisor, AccountStatus: shared.AccountPending},
	}
	m := Middleware{Actors: actors}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := m.Authenticate(m.Require(CapApprove, CapRegisterBill)(ok))

	require.Equal(t, http.StatusForbidden, serve(h, sessionFor(1)).Code)
	require.Equal(t, http.StatusOK, serve(h, sessionFor(2)).Code)
	require.Equal(t, http.StatusForbidden, serve(h, sessionFor(3)).Code)

	require.Equal(t, http.StatusUnauthorized, serve(m.Require(CapApprove)(ok), nil).Code)
}
