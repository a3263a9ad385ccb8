package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SystemEvent{}))
	return NewService(db), db
}

func TestService_LogEvent(t *testing.T) {
	service, db := setupService(t)

	err := service.LogInfo(models.EventTypeCreditAllocation, "给账户分配额度", map[string]interface{}{
		"account_id": "acct-1",
		"amount":     "50",
	})
	require.NoError(t, err)

	var event models.SystemEvent
	require.NoError(t, db.First(&event).Error)
	assert.Equal(t, models.EventTypeCreditAllocation, event.Type)
	assert.Equal(t, models.EventLevelInfo, event.Level)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(event.Metadata), &metadata))
	assert.Equal(t, "acct-1", metadata["account_id"])
}

func TestService_LogLevels(t *testing.T) {
	service, _ := setupService(t)

	require.NoError(t, service.LogInfo(models.EventTypeConfigChange, "info", nil))
	require.NoError(t, service.LogWarning(models.EventTypeMeteringAnomaly, "warning", nil))
	require.NoError(t, service.LogError(models.EventTypeHealthTransition, "error", nil))

	events, err := service.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	levels := map[string]int{}
	for _, event := range events {
		levels[event.Level]++
	}
	assert.Equal(t, 1, levels[models.EventLevelInfo])
	assert.Equal(t, 1, levels[models.EventLevelWarning])
	assert.Equal(t, 1, levels[models.EventLevelError])
}

func TestService_GetEventsByType(t *testing.T) {
	service, _ := setupService(t)

	require.NoError(t, service.LogInfo(models.EventTypeFailover, "failover 1", nil))
	require.NoError(t, service.LogInfo(models.EventTypeFailover, "failover 2", nil))
	require.NoError(t, service.LogInfo(models.EventTypeProviderDisabled, "disabled", nil))

	events, err := service.GetEventsByType(models.EventTypeFailover, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = service.GetEventsByType("nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_GetRecentEvents_LimitClamped(t *testing.T) {
	service, _ := setupService(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, service.LogInfo(models.EventTypeConfigChange, "event", nil))
	}

	events, err := service.GetRecentEvents(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// 非法 limit 回落到默认值
	events, err = service.GetRecentEvents(-1)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestService_CleanupOldEvents(t *testing.T) {
	service, db := setupService(t)

	require.NoError(t, service.LogInfo(models.EventTypeConfigChange, "recent", nil))

	old := &models.SystemEvent{
		Type:      models.EventTypeConfigChange,
		Message:   "ancient",
		Level:     models.EventLevelInfo,
		CreatedAt: time.Now().AddDate(0, 0, -40),
	}
	require.NoError(t, db.Create(old).Error)

	deleted, err := service.CleanupOldEvents(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	db.Model(&models.SystemEvent{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
