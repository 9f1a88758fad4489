package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpilot/internal/auth"
	"sellerpilot/internal/config"
	"sellerpilot/internal/scheduler"
	"sellerpilot/internal/store"
	"sellerpilot/internal/types"
)

const testToken = "test-token"

type stubAuth struct {
	loginErr  error
	loggedOut []string
}

func (a *stubAuth) Authenticate(token string) (types.AuthUser, error) {
	if token == testToken {
		return types.AuthUser{ID: "tg:42", Username: "ada"}, nil
	}
	if token == "" {
		return types.AuthUser{}, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization token required", nil)
	}
	return types.AuthUser{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authorization token", nil)
}

func (a *stubAuth) LoginTelegram(data auth.TelegramAuthData) (auth.Session, error) {
	if a.loginErr != nil {
		return auth.Session{}, a.loginErr
	}
	return auth.Session{
		ID:        "sess-1",
		User:      types.AuthUser{ID: "tg:42", FirstName: data.FirstName},
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (a *stubAuth) LoginAdmin(token string) (auth.Session, error) {
	if token != "admin-secret" {
		return auth.Session{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid admin token", nil)
	}
	return auth.Session{
		ID:        "sess-admin",
		User:      types.AuthUser{ID: "admin", IsAdmin: true},
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (a *stubAuth) Logout(sessionID string) {
	a.loggedOut = append(a.loggedOut, sessionID)
}

type stubRunners struct {
	unarchiveResult *types.UnarchiveResult
	promotionResult *types.PromotionResult
	factoryErr      error
	connErr         error
	connCalls       int
}

type unarchiveRunnerFunc func(ctx context.Context) *types.UnarchiveResult

func (f unarchiveRunnerFunc) Run(ctx context.Context) *types.UnarchiveResult { return f(ctx) }

type promotionRunnerFunc func(ctx context.Context) *types.PromotionResult

func (f promotionRunnerFunc) Run(ctx context.Context) *types.PromotionResult { return f(ctx) }

func (r *stubRunners) NewUnarchiveRunner(s types.StoreConfig) (scheduler.UnarchiveRunner, error) {
	if r.factoryErr != nil {
		return nil, r.factoryErr
	}
	return unarchiveRunnerFunc(func(context.Context) *types.UnarchiveResult {
		return r.unarchiveResult
	}), nil
}

func (r *stubRunners) NewPromotionRunner(s types.StoreConfig) (scheduler.PromotionRunner, error) {
	if r.factoryErr != nil {
		return nil, r.factoryErr
	}
	return promotionRunnerFunc(func(context.Context) *types.PromotionResult {
		return r.promotionResult
	}), nil
}

func (r *stubRunners) TestConnection(ctx context.Context, s types.StoreConfig) error {
	r.connCalls++
	return r.connErr
}

type testServer struct {
	srv     *Server
	auth    *stubAuth
	runners *stubRunners
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	stores, err := store.NewFileStore(store.Config{
		Path:          filepath.Join(t.TempDir(), "config.json"),
		SnapshotsKeep: 0,
	})
	require.NoError(t, err)

	runners := &stubRunners{
		unarchiveResult: &types.UnarchiveResult{
			Success:         true,
			TotalUnarchived: 3,
			CyclesCompleted: 4,
			StoppedReason:   types.StopAutoArchiveEmpty,
			Message:         "archive drained",
		},
		promotionResult: &types.PromotionResult{
			Success:          true,
			ProductsRemoved:  7,
			ActionsProcessed: 2,
		},
	}

	sched, err := scheduler.New(scheduler.Config{
		Timezone:           "UTC",
		NewUnarchiveRunner: runners.NewUnarchiveRunner,
		NewPromotionRunner: runners.NewPromotionRunner,
	})
	require.NoError(t, err)

	authSvc := &stubAuth{}
	srv, err := NewServer(&config.Config{Environment: "local", LogLevel: "info"}, Deps{
		Stores:    stores,
		Auth:      authSvc,
		Scheduler: sched,
		Runners:   runners,
	})
	require.NoError(t, err)
	srv.MountRoutes()

	return &testServer{srv: srv, auth: authSvc, runners: runners}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func storePayload(name string) map[string]any {
	return map[string]any{
		"name":                   name,
		"client_id":              "client-1",
		"api_key":                "key-1",
		"is_active":              true,
		"unarchive_enabled":      true,
		"unarchive_time":         "03:00",
		"remove_from_promotions": true,
		"promotion_cleanup_time": "04:30",
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/stores", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeAuthTokenMissing))
}

func TestStoreLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/stores", storePayload("shop"), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[types.StoreConfig](t, rec)
	assert.NotEmpty(t, created.ID)

	// Both enabled kinds are scheduled on create.
	status := ts.srv.Scheduler.Status()
	assert.Equal(t, 2, status.JobCount)

	// The list response must redact credentials.
	rec = ts.do(t, http.MethodGet, "/v1/stores", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "key-1")
	assert.Contains(t, rec.Body.String(), "REDACTED")

	payload := storePayload("shop")
	payload["unarchive_time"] = "05:00"
	rec = ts.do(t, http.MethodPut, "/v1/stores/shop", payload, true)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeData[types.StoreConfig](t, rec)
	assert.Equal(t, "05:00", updated.UnarchiveTime)
	assert.Equal(t, created.ID, updated.ID)

	rec = ts.do(t, http.MethodDelete, "/v1/stores/shop", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	// Jobs are dropped with the store.
	status = ts.srv.Scheduler.Status()
	assert.Equal(t, 0, status.JobCount)
}

func TestCreateStore_ValidationError(t *testing.T) {
	ts := newTestServer(t)

	payload := storePayload("shop")
	payload["unarchive_time"] = "25:00"
	rec := ts.do(t, http.MethodPost, "/v1/stores", payload, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationInvalidTime))

	payload = storePayload("shop")
	payload["client_id"] = ""
	rec = ts.do(t, http.MethodPost, "/v1/stores", payload, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationInvalidStore))
}

func TestCreateStore_UnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t)

	payload := storePayload("shop")
	payload["surprise"] = true
	rec := ts.do(t, http.MethodPost, "/v1/stores", payload, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_invalid_json")
}

func TestTestConnection(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/stores/ghost/test-connection", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/stores", storePayload("shop"), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/stores/shop/test-connection", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[connectionTestResponse](t, rec)
	assert.True(t, res.Success)

	ts.runners.connErr = errors.New("401 unauthorized")
	rec = ts.do(t, http.MethodPost, "/v1/stores/shop/test-connection", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeData[connectionTestResponse](t, rec)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "401")
}

func TestUnarchiveRun(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/stores", storePayload("enabled"), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	disabled := storePayload("disabled")
	disabled["unarchive_enabled"] = false
	delete(disabled, "unarchive_time")
	rec = ts.do(t, http.MethodPost, "/v1/stores", disabled, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/archive/unarchive", map[string]any{
		"store_names": []string{"enabled", "disabled", "ghost"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	results := decodeData[[]unarchiveRunOutcome](t, rec)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].TotalUnarchived)
	assert.Equal(t, types.StopAutoArchiveEmpty, results[0].StoppedReason)

	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "disabled")

	assert.False(t, results[2].Success)
	assert.Equal(t, "store not found", results[2].Error)
}

func TestUnarchiveRun_EmptyStoreList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/archive/unarchive", map[string]any{
		"store_names": []string{},
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationEmptyBatch))
}

func TestUnarchiveRun_OversizedStoreList(t *testing.T) {
	ts := newTestServer(t)

	names := make([]string, maxRunStores+1)
	for i := range names {
		names[i] = fmt.Sprintf("store-%d", i)
	}
	rec := ts.do(t, http.MethodPost, "/v1/archive/unarchive", map[string]any{
		"store_names": names,
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationBatchSize))
}

func TestPromotionRun(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/stores", storePayload("shop"), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/promotions/remove", map[string]any{
		"store_names": []string{"shop"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	results := decodeData[[]promotionRunOutcome](t, rec)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 7, results[0].ProductsRemoved)
	assert.Equal(t, 2, results[0].ActionsProcessed)
}

func TestScheduleStatusAndReload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/stores", storePayload("shop"), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/schedule/status", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[types.SchedulerStatus](t, rec)
	assert.Equal(t, 2, status.JobCount)

	rec = ts.do(t, http.MethodPost, "/v1/schedule/reload", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 stores")

	status = ts.srv.Scheduler.Status()
	assert.Equal(t, 2, status.JobCount)
}

func TestAdminLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/auth/admin/login", map[string]string{"token": "admin-secret"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeData[sessionResponse](t, rec)
	assert.Equal(t, "sess-admin", sess.Token)
	assert.True(t, sess.User.IsAdmin)

	rec = ts.do(t, http.MethodPost, "/v1/auth/admin/login", map[string]string{"token": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTelegramLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/auth/telegram/login", auth.TelegramAuthData{
		ID:        42,
		FirstName: "Ada",
		AuthDate:  time.Now().Unix(),
		Hash:      "aabbcc",
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeData[sessionResponse](t, rec)
	assert.Equal(t, "sess-1", sess.Token)

	ts.auth.loginErr = types.NewAppError(types.ErrCodeAuthHashMismatch, "telegram auth hash does not match", nil)
	rec = ts.do(t, http.MethodPost, "/v1/auth/telegram/login", auth.TelegramAuthData{
		ID: 42, FirstName: "Ada", AuthDate: time.Now().Unix(), Hash: "bad",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/auth/me", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeData[types.AuthUser](t, rec)
	assert.Equal(t, "tg:42", user.ID)

	rec = ts.do(t, http.MethodPost, "/v1/auth/logout", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{testToken}, ts.auth.loggedOut)
}

func TestRecovererCatchesPanics(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.Router().Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := ts.do(t, http.MethodGet, "/boom", nil, false)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeInternalUnexpected))
}
