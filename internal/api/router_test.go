package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/config"
	"github.com/Luminoxx/Arcturus-API/internal/db"
	"github.com/Luminoxx/Arcturus-API/internal/models"
)

const (
	testAdminKey      = "test-admin-key"
	testEncryptionKey = "0123456789abcdef0123456789abcdef"
)

type apiFixture struct {
	app *Application
	db  *gorm.DB
}

func setupAPI(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:     8080,
			AdminKey: testAdminKey,
		},
		Health: config.HealthConfig{
			Interval:     time.Minute,
			ProbeTimeout: time.Second,
			SlowLatency:  500 * time.Millisecond,
		},
		Orchestrator: config.OrchestratorConfig{
			DispatchTimeout: time.Second,
			MaxAttempts:     3,
		},
	}

	app := SetupApplication(database, cfg, []byte(testEncryptionKey))
	t.Cleanup(app.Counter.Close)

	return &apiFixture{app: app, db: database}
}

// doRequest 发起一次测试请求
func (f *apiFixture) doRequest(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	f.app.Router.ServeHTTP(recorder, req)
	return recorder
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func accountHeaders(accountID string) map[string]string {
	return map[string]string{
		"X-Account-Id":   accountID,
		"X-Account-Tier": models.AccountTierFree,
	}
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	return result
}

func TestAPI_Health(t *testing.T) {
	f := setupAPI(t)

	recorder := f.doRequest(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPI_IdentityRequired(t *testing.T) {
	f := setupAPI(t)

	// 缺少账户头
	recorder := f.doRequest(t, http.MethodGet, "/api/credits/balance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// 非法档位
	recorder = f.doRequest(t, http.MethodGet, "/api/credits/balance", nil, map[string]string{
		"X-Account-Id":   "acct-1",
		"X-Account-Tier": "platinum",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 未指定档位默认 free
	recorder = f.doRequest(t, http.MethodGet, "/api/credits/balance", nil, map[string]string{
		"X-Account-Id": "acct-1",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code) // 账户存在但无额度记录
}

func TestAPI_AdminAuth(t *testing.T) {
	f := setupAPI(t)

	recorder := f.doRequest(t, http.MethodGet, "/api/admin/providers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.doRequest(t, http.MethodGet, "/api/admin/providers", nil, map[string]string{
		"X-Admin-Key": "wrong-key",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.doRequest(t, http.MethodGet, "/api/admin/providers", nil, adminHeaders())
	assert.Equal(t, http.StatusOK, recorder.Code)
}

// 未配置管理密钥时管理面整体关闭
func TestAPI_AdminDisabledWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	cfg := &config.Config{
		Orchestrator: config.OrchestratorConfig{DispatchTimeout: time.Second, MaxAttempts: 3},
		Health:       config.HealthConfig{Interval: time.Minute, ProbeTimeout: time.Second, SlowLatency: time.Second},
	}
	app := SetupApplication(database, cfg, []byte(testEncryptionKey))
	t.Cleanup(app.Counter.Close)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/providers", nil)
	req.Header.Set("X-Admin-Key", "anything")
	recorder := httptest.NewRecorder()
	app.Router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

// 管理面完整链路：供应商 → 模型 → 规则 → 额度 → 路由试算
func TestAPI_AdminProvisioningFlow(t *testing.T) {
	f := setupAPI(t)

	// 1. 创建供应商
	recorder := f.doRequest(t, http.MethodPost, "/api/admin/providers", map[string]interface{}{
		"name":         "OpenAI",
		"slug":         "openai",
		"base_url":     "https://api.openai.com",
		"auth_scheme":  "bearer",
		"platform_key": "sk-platform-1234567890abcdef",
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	provider := decodeBody(t, recorder)
	providerID := uint(provider["id"].(float64))
	assert.Equal(t, true, provider["has_platform_key"])

	// 标记为健康，贴近真实巡检后的状态
	require.NoError(t, f.db.Model(&models.Provider{}).
		Where("id = ?", providerID).
		Update("health_status", models.HealthStatusHealthy).Error)

	// 2. 创建模型
	recorder = f.doRequest(t, http.MethodPost, "/api/admin/models", map[string]interface{}{
		"provider_id":             providerID,
		"model_id":                "gpt-4o-mini",
		"context_window":          128000,
		"input_cost_per_million":  0.15,
		"output_cost_per_million": 0.6,
		"power_tier":              models.PowerTierBalanced,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	model := decodeBody(t, recorder)
	modelID := uint(model["id"].(float64))

	// 3. 创建路由规则
	recorder = f.doRequest(t, http.MethodPost, "/api/admin/rules", map[string]interface{}{
		"power_tier":   models.PowerTierBalanced,
		"account_tier": models.AccountTierFree,
		"task_type":    models.TaskTypeChat,
		"model_id":     modelID,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	// 4. 分配额度
	recorder = f.doRequest(t, http.MethodPost, "/api/admin/credits/allocate", map[string]interface{}{
		"account_id": "acct-1",
		"amount":     50,
		"tier":       models.AccountTierFree,
		"reason":     "initial grant",
	}, adminHeaders())
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	// 5. 账户侧可见余额
	recorder = f.doRequest(t, http.MethodGet, "/api/credits/balance", nil, accountHeaders("acct-1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	balance := decodeBody(t, recorder)
	assert.Equal(t, "50", balance["remaining"])

	// 6. 路由试算命中刚配置的链路
	recorder = f.doRequest(t, http.MethodPost, "/v1/route/preview", map[string]interface{}{
		"power_tier": models.PowerTierBalanced,
		"task_type":  models.TaskTypeChat,
	}, accountHeaders("acct-1"))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	preview := decodeBody(t, recorder)
	primary := preview["primary"].(map[string]interface{})
	assert.Equal(t, "openai", primary["provider"])
	assert.Equal(t, "gpt-4o-mini", primary["model"])
	assert.Equal(t, models.CredentialSourcePlatform, primary["credential_source"])

	// 7. 对账一致
	recorder = f.doRequest(t, http.MethodGet, "/api/admin/credits/acct-1/reconcile", nil, adminHeaders())
	require.Equal(t, http.StatusOK, recorder.Code)
	reconcile := decodeBody(t, recorder)
	assert.Equal(t, true, reconcile["consistent"])
}

func TestAPI_PreviewNoRoute(t *testing.T) {
	f := setupAPI(t)

	recorder := f.doRequest(t, http.MethodPost, "/v1/route/preview", map[string]interface{}{
		"power_tier": models.PowerTierBalanced,
		"task_type":  models.TaskTypeChat,
	}, accountHeaders("acct-1"))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAPI_CredentialLifecycle(t *testing.T) {
	f := setupAPI(t)

	// 先配一个允许 BYOK 的供应商
	recorder := f.doRequest(t, http.MethodPost, "/api/admin/providers", map[string]interface{}{
		"name":     "OpenAI",
		"slug":     "openai",
		"base_url": "https://api.openai.com",
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, recorder.Code)
	providerID := uint(decodeBody(t, recorder)["id"].(float64))

	// 存储凭证
	recorder = f.doRequest(t, http.MethodPost, "/api/credentials", map[string]interface{}{
		"provider_id": providerID,
		"api_key":     "sk-user-abcdef1234567890mnop",
	}, accountHeaders("acct-1"))
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	stored := decodeBody(t, recorder)
	assert.Equal(t, true, stored["is_valid"])
	assert.Equal(t, "sk-user-", stored["key_prefix"])

	// 格式非法的密钥被拒
	recorder = f.doRequest(t, http.MethodPost, "/api/credentials", map[string]interface{}{
		"provider_id": providerID,
		"api_key":     "short",
	}, accountHeaders("acct-1"))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 列表脱敏
	recorder = f.doRequest(t, http.MethodGet, "/api/credentials", nil, accountHeaders("acct-1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	listed := decodeBody(t, recorder)
	credentials := listed["credentials"].([]interface{})
	require.Len(t, credentials, 1)

	// 其他账户看不到
	recorder = f.doRequest(t, http.MethodGet, "/api/credentials", nil, accountHeaders("acct-2"))
	listed = decodeBody(t, recorder)
	assert.Empty(t, listed["credentials"])

	// 删除幂等
	path := "/api/credentials/" + strconv.FormatUint(uint64(providerID), 10)
	recorder = f.doRequest(t, http.MethodDelete, path, nil, accountHeaders("acct-1"))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	recorder = f.doRequest(t, http.MethodDelete, path, nil, accountHeaders("acct-1"))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestAPI_UsageAndStats(t *testing.T) {
	f := setupAPI(t)

	recorder := f.doRequest(t, http.MethodGet, "/api/usage", nil, accountHeaders("acct-1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(0), pagination["total"])

	recorder = f.doRequest(t, http.MethodGet, "/api/usage/summary", nil, accountHeaders("acct-1"))
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.doRequest(t, http.MethodGet, "/api/stats", nil, accountHeaders("acct-1"))
	require.Equal(t, http.StatusOK, recorder.Code)
	statsBody := decodeBody(t, recorder)
	assert.Contains(t, statsBody, "providers")
	assert.Contains(t, statsBody, "requests")
}
