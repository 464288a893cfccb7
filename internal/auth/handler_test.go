package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/billtrack/billtrack/internal/auth"
	"github.com/billtrack/billtrack/internal/shared"
	_ "github.com/billtrack/billtrack/testing"
)

type stubRepo struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{accounts: make(map[string]*auth.Account)}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (s *stubRepo) CreateActor(ctx context.Context, in auth.RegisterInput, passwordHash string) (shared.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	actor := shared.Actor{ID: s.nextID, Email: in.Email, Name: in.Name, Role: shared.RoleUser, AccountStatus: shared.AccountPending}
	s.accounts[strings.ToLower(in.Email)] = &auth.Account{Actor: actor, PasswordHash: passwordHash}
	return actor, nil
}

type fixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T, repo auth.Repository) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			buffered := httptest.NewRecorder()
			next.ServeHTTP(buffered, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
			if err := sessions.Commit(req.Context(), w, sess); err != nil {
				t.Fatalf("commit session: %v", err)
			}
			for k, v := range buffered.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(buffered.Code)
			_, _ = w.Write(buffered.Body.Bytes())
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return fixture{router: r, sessions: sessions, redis: mr}
}

func (f fixture) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(res *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range res.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesPendingUser(t *testing.T) {
	repo := newStubRepo()
	f := newFixture(t, repo)

	res := f.post(t, "/auth/register", map[string]string{"email": "ana@example.org", "name": "Ana", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var actor shared.Actor
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &actor))
	require.Equal(t, shared.RoleUser, actor.Role)
	require.Equal(t, shared.AccountPending, actor.AccountStatus)

	stored, err := repo.FindByEmail(context.Background(), "ana@example.org")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))

	res = f.post(t, "/auth/register", map[string]string{"email": "ANA@example.org", "password": "another pass"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.post(t, "/auth/register", map[string]string{"email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.accounts["user@test.local"] = &auth.Account{
		Actor:        shared.Actor{ID: 1, Email: "user@test.local", Role: shared.RoleUser, AccountStatus: shared.AccountActive},
		PasswordHash: string(hashed),
	}
	f := newFixture(t, repo)

	res := f.post(t, "/auth/login", map[string]string{"email": "user@test.local", "password": "wrongpass"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid_credentials")
	require.Nil(t, sessionCookie(res))

	res = f.post(t, "/auth/login", map[string]string{"email": "nobody@test.local", "password": "correctpass"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginPendingAccountGetsSession(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.accounts["new@test.local"] = &auth.Account{
		Actor:        shared.Actor{ID: 7, Email: "new@test.local", Role: shared.RoleUser, AccountStatus: shared.AccountPending},
		PasswordHash: string(hashed),
	}
	f := newFixture(t, repo)

	res := f.post(t, "/auth/login", map[string]string{"email": "new@test.local", "password": "correctpass"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	cookie := sessionCookie(res)
	require.NotNil(t, cookie)
	require.True(t, f.redis.Exists("billtrack:session:"+cookie.Value))

	var body struct {
		Actor     shared.Actor `json:"actor"`
		CSRFToken string       `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.EqualValues(t, 7, body.Actor.ID)
	require.NotEmpty(t, body.CSRFToken)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 7, sess.ActorID())
	require.Equal(t, body.CSRFToken, sess.Get(shared.CSRFSessionKey))

	res = f.post(t, "/auth/logout", map[string]string{}, cookie)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.False(t, f.redis.Exists("billtrack:session:"+cookie.Value))
}

func TestLoginRotatesSessionID(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubRepo()
	repo.accounts["user@test.local"] = &auth.Account{
		Actor:        shared.Actor{ID: 1, Email: "user@test.local", Role: shared.RoleUser, AccountStatus: shared.AccountActive},
		PasswordHash: string(hashed),
	}
	f := newFixture(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	anonymous := sessionCookie(res)
	require.NotNil(t, anonymous)

	res = f.post(t, "/auth/login", map[string]string{"email": "user@test.local", "password": "correctpass"}, anonymous)
	require.Equal(t, http.StatusOK, res.Code)
	authenticated := sessionCookie(res)
	require.NotNil(t, authenticated)
	require.NotEqual(t, anonymous.Value, authenticated.Value)
	require.False(t, f.redis.Exists("billtrack:session:"+anonymous.Value))
}
