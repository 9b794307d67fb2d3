package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-pipeline/internal/mocks"
	"chat-pipeline/internal/pipeline"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

type fakeBroadcaster struct {
	ready bool
}

func (f fakeBroadcaster) Ready() bool {
	return f.ready
}

func setupHealthRouter(handler *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", handler.Health)
	return r
}

func TestHealthAllUp(t *testing.T) {
	state := pipeline.NewState()
	state.SetBrokerUp(true)
	state.SetLeader(true)
	store := new(mocks.CacheStoreMock)
	store.On("Ping", mock.Anything).Return(nil).Once()

	handler := NewHealthHandler(state, store, fakePinger{}, fakeBroadcaster{ready: true})
	router := setupHealthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp["status"])
	require.Equal(t, true, resp["is_leader"])
	require.Equal(t, true, resp["log_up"])
	require.Equal(t, true, resp["cache_up"])
	require.Equal(t, true, resp["store_up"])
	require.Equal(t, true, resp["broadcaster_up"])
}

func TestHealthDegradedAfterDemotion(t *testing.T) {
	state := pipeline.NewState()
	state.SetBrokerUp(true)
	state.SetLeader(false)
	store := new(mocks.CacheStoreMock)
	store.On("Ping", mock.Anything).Return(nil).Once()

	handler := NewHealthHandler(state, store, fakePinger{err: assert.AnError}, fakeBroadcaster{ready: true})
	router := setupHealthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "degraded", resp["status"])
	require.Equal(t, false, resp["is_leader"])
	require.Equal(t, false, resp["store_up"])
}

func TestHealthCacheDown(t *testing.T) {
	state := pipeline.NewState()
	state.SetBrokerUp(true)
	store := new(mocks.CacheStoreMock)
	store.On("Ping", mock.Anything).Return(assert.AnError).Once()

	handler := NewHealthHandler(state, store, fakePinger{}, fakeBroadcaster{ready: true})
	router := setupHealthRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, false, resp["cache_up"])
}
