package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sid", time.Hour, false), mr
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: value})
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	require.Zero(t, sess.ActorID())
	sess.SetActor(42)
	sess.Set("k", "v")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	require.True(t, mr.Exists("billtrack:session:"+sess.ID))
	require.Len(t, rec.Result().Cookies(), 1)
	require.Equal(t, sess.ID, rec.Result().Cookies()[0].Value)

	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	require.Equal(t, int64(42), loaded.ActorID())
	require.Equal(t, "v", loaded.Get("k"))

	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, loaded))
	require.Empty(t, rec.Result().Cookies(), "clean sessions are not rewritten")
}

func TestSessionUnknownIDStartsFresh(t *testing.T) {
	sm, _ := newTestSessions(t)

	sess, err := sm.Load(context.Background(), requestWithCookie("forged"))
	require.NoError(t, err)
	require.NotEqual(t, "forged", sess.ID)
	require.Zero(t, sess.ActorID())
}

func TestSessionRenewAndDestroy(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	sess.SetActor(1)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	loaded, err := sm.Load(ctx, requestWithCookie(oldID))
	require.NoError(t, err)
	require.NoError(t, sm.Renew(ctx, loaded))
	require.NotEqual(t, oldID, loaded.ID)
	require.False(t, mr.Exists("billtrack:session:"+oldID))
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))
	require.True(t, mr.Exists("billtrack:session:"+loaded.ID))

	sm.Destroy(loaded)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, loaded))
	require.False(t, mr.Exists("billtrack:session:"+loaded.ID))
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestCSRFTokens(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "abc"}

	require.ErrorIs(t, m.VerifyToken(sess, "anything"), ErrCSRFTokenMissing)

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	require.Equal(t, token, again)
	require.NoError(t, m.VerifyToken(sess, token))
	require.ErrorIs(t, m.VerifyToken(sess, token+"x"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(nil, token), ErrCSRFTokenMissing)

	rotated, err := m.Rotate(sess)
	require.NoError(t, err)
	require.NotEqual(t, token, rotated)
	require.ErrorIs(t, m.VerifyToken(sess, token), ErrCSRFTokenMismatch)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}, p)
	require.Equal(t, 0, p.Offset())

	p = NewPagination(3, 1000, 450)
	require.Equal(t, 200, p.PerPage)
	require.Equal(t, 400, p.Offset())
	require.Equal(t, 3, p.TotalPages)
}
