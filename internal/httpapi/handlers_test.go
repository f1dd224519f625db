package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/executor"
	"github.com/DoyleJ11/codeshare-backend/internal/hub"
	"github.com/DoyleJ11/codeshare-backend/internal/store"
)

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, executor.Request) (executor.Result, error) {
	return executor.Result{}, nil
}

type fakePlans map[string]string

func (f fakePlans) PlanFor(_ context.Context, userID string) (store.UserPlan, error) {
	if userID == "broken" {
		return store.UserPlan{}, errors.New("connection refused")
	}
	plan, ok := f[userID]
	if !ok {
		return store.UserPlan{}, store.ErrPlanNotFound
	}
	return store.UserPlan{UserID: userID, Plan: plan}, nil
}

func newRouter(t *testing.T, plans PlanReader) (*hub.Hub, http.Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, zap.NewNop(), noopExecutor{})
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, SetupRoutes(Deps{Hub: h, WS: http.NotFoundHandler(), Plans: plans, Log: zap.NewNop()})
}

func do(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRootAndHealth(t *testing.T) {
	_, router := newRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz").Code)
}

func TestStats(t *testing.T) {
	_, router := newRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active_rooms":0,"active_sessions":0}`, rec.Body.String())
}

func TestCreateRoom(t *testing.T) {
	_, router := newRouter(t, nil)

	rec := do(t, router, http.MethodPost, "/api/rooms")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.RoomID, 6)
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Regexp(t, `^[A-Z0-9]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestUserPlan(t *testing.T) {
	cases := []struct {
		name       string
		plans      PlanReader
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "known user",
			plans:      fakePlans{"u1": "Pro"},
			path:       "/api/users/u1/plan",
			wantStatus: http.StatusOK,
			wantBody:   `{"userId":"u1","plan":"Pro","updatedAt":"0001-01-01T00:00:00Z"}`,
		},
		{
			name:       "unknown user",
			plans:      fakePlans{},
			path:       "/api/users/nobody/plan",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"user not found"}`,
		},
		{
			name:       "store failure",
			plans:      fakePlans{},
			path:       "/api/users/broken/plan",
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"failed to load plan"}`,
		},
		{
			name:       "store not configured",
			plans:      nil,
			path:       "/api/users/u1/plan",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"error":"plan store not configured"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, router := newRouter(t, tc.plans)
			rec := do(t, router, http.MethodGet, tc.path)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestAwait(t *testing.T) {
	t.Run("reply", func(t *testing.T) {
		reply := make(chan int, 1)
		reply <- 7
		v, ok := await(context.Background(), make(chan struct{}), reply)
		assert.True(t, ok)
		assert.Equal(t, 7, v)
	})

	t.Run("hub stopped without replying", func(t *testing.T) {
		done := make(chan struct{})
		close(done)
		_, ok := await(context.Background(), done, make(chan int))
		assert.False(t, ok)
	})

	t.Run("reply raced with stop", func(t *testing.T) {
		done := make(chan struct{})
		close(done)
		reply := make(chan int, 1)
		reply <- 3
		v, ok := await(context.Background(), done, reply)
		assert.True(t, ok)
		assert.Equal(t, 3, v)
	})
}

func TestStatsAfterHubStopped(t *testing.T) {
	h, router := newRouter(t, nil)
	require.True(t, h.Send(context.Background(), hub.Shutdown{}))
	<-h.Done()

	rec := do(t, router, http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/rooms")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
