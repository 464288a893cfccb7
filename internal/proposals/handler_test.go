package proposals

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/billtrack/billtrack/internal/bills"
	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

type staticActors map[int64]shared.Actor

func (s staticActors) GetActor(ctx context.Context, id int64) (shared.Actor, error) {
	actor, ok := s[id]
	if !ok {
		return shared.Actor{}, shared.ErrNotFound
	}
	return actor, nil
}

func newTestRouter(t *testing.T, repo *memoryRepo, actors staticActors) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Actors: actors, Logger: logger}
	h := NewHandler(logger, NewService(repo, nil, nil, logger), mw)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := &shared.Session{ID: "test"}
			if id, err := strconv.ParseInt(r.Header.Get("X-Actor"), 10, 64); err == nil {
				sess.SetActor(id)
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.Authenticate)
		h.MountRoutes(r)
	})
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, actor int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != 0 {
		req.Header.Set("X-Actor", strconv.FormatInt(actor, 10))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerProposeAndResolve(t *testing.T) {
	repo := newMemoryRepo()
	bill := repo.addBill("HB1", bills.StagePassedChamber)
	actors := staticActors{
		10: activeActor(10, shared.RoleUser),
		1:  activeActor(1, shared.RoleAdmin),
		20: {ID: 20, Role: shared.RoleUser, AccountStatus: shared.AccountPending},
	}
	router := newTestRouter(t, repo, actors)

	rec := doJSON(t, router, http.MethodPost, "/api/proposals", 0, map[string]any{"bill_id": bill.ID, "proposed_stage": "crossover"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/proposals", 20, map[string]any{"bill_id": bill.ID, "proposed_stage": "crossover"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, repo.countPending())

	rec = doJSON(t, router, http.MethodPost, "/api/proposals", 10, map[string]any{"bill_id": bill.ID, "proposed_stage": "tabled"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/proposals", 10, map[string]any{"bill_id": bill.ID, "proposed_stage": "crossover", "note": "passed 3rd reading"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusPending, created.ApprovalStatus)

	rec = doJSON(t, router, http.MethodPost, "/api/proposals", 10, map[string]any{"bill_id": bill.ID, "proposed_stage": "crossover"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "duplicate_proposal")

	rec = doJSON(t, router, http.MethodGet, "/api/proposals?bill_id="+strconv.FormatInt(bill.ID, 10), 10, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Proposals, 1)
	require.Empty(t, listed.NextCursor)

	path := "/api/proposals/" + strconv.FormatInt(created.ID, 10) + "/resolve"
	rec = doJSON(t, router, http.MethodPost, path, 10, map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, path, 1, map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)
	var outcome Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.Equal(t, StatusApproved, outcome.Proposal.ApprovalStatus)
	require.Equal(t, bills.StageCrossover, outcome.Bill.CurrentStage)

	rec = doJSON(t, router, http.MethodPost, path, 1, map[string]any{"decision": "reject"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already_resolved")

	rec = doJSON(t, router, http.MethodGet, "/api/bills/"+strconv.FormatInt(bill.ID, 10)+"/proposals", 10, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"approval_status":"approved"`)
}

func TestHandlerQueuePaginatesWithCursor(t *testing.T) {
	repo := newMemoryRepo()
	bill := repo.addBill("HB1", bills.StageIntroduced)
	actors := staticActors{1: activeActor(1, shared.RoleAdmin)}
	svc := NewService(repo, nil, nil, nil)
	for i, stage := range []bills.Stage{bills.StageCommitteeScheduled, bills.StageFailed, bills.StageVetoed} {
		_, err := svc.Create(context.Background(), activeActor(int64(10+i), shared.RoleUser), CreateInput{BillID: bill.ID, ProposedStage: stage})
		require.NoError(t, err)
	}
	router := newTestRouter(t, repo, actors)

	rec := doJSON(t, router, http.MethodGet, "/api/proposals/queue?limit=2", 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Proposals, 2)
	require.NotEmpty(t, first.NextCursor)

	rec = doJSON(t, router, http.MethodGet, "/api/proposals/queue?limit=2&after="+first.NextCursor, 1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Proposals, 1)
	require.Equal(t, bills.StageVetoed, second.Proposals[0].ProposedStage)
}
