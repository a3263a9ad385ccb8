package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

func probeAgainst(t *testing.T, handler http.HandlerFunc, scheme string) *ProbeResult {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	checker := NewChecker(2*time.Second, 500*time.Millisecond)
	provider := &models.Provider{
		Slug:       "probe-target",
		BaseURL:    server.URL,
		AuthScheme: scheme,
	}
	return checker.Probe(context.Background(), provider, "sk-test-1234567890abcdef")
}

func TestChecker_Healthy(t *testing.T) {
	var gotAuth string
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}, models.AuthSchemeBearer)

	assert.Equal(t, models.HealthStatusHealthy, result.Status)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "Bearer sk-test-1234567890abcdef", gotAuth)
}

func TestChecker_APIKeyScheme(t *testing.T) {
	var gotKey string
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.WriteHeader(http.StatusOK)
	}, models.AuthSchemeAPIKey)

	assert.Equal(t, models.HealthStatusHealthy, result.Status)
	assert.Equal(t, "sk-test-1234567890abcdef", gotKey)
}

func TestChecker_SlowResponseDegraded(t *testing.T) {
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(700 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}, models.AuthSchemeBearer)

	assert.Equal(t, models.HealthStatusDegraded, result.Status)
}

func TestChecker_RateLimitedDegraded(t *testing.T) {
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, models.AuthSchemeBearer)

	assert.Equal(t, models.HealthStatusDegraded, result.Status)
}

func TestChecker_AuthRejectedDegraded(t *testing.T) {
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, models.AuthSchemeBearer)

	// 端点可达但拒绝探测请求，不算 down
	assert.Equal(t, models.HealthStatusDegraded, result.Status)
}

func TestChecker_ServerErrorDown(t *testing.T) {
	result := probeAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, models.AuthSchemeBearer)

	assert.Equal(t, models.HealthStatusDown, result.Status)
}

func TestChecker_ConnectionRefusedDown(t *testing.T) {
	checker := NewChecker(time.Second, 500*time.Millisecond)
	provider := &models.Provider{
		Slug:    "unreachable",
		BaseURL: "http://127.0.0.1:1", // 无服务监听
	}

	result := checker.Probe(context.Background(), provider, "")
	assert.Equal(t, models.HealthStatusDown, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestChecker_TimeoutDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(server.Close)

	checker := NewChecker(200*time.Millisecond, 100*time.Millisecond)
	provider := &models.Provider{Slug: "slowpoke", BaseURL: server.URL}

	result := checker.Probe(context.Background(), provider, "")
	assert.Equal(t, models.HealthStatusDown, result.Status)
}
