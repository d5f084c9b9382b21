package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKFLOW_FIELD_ROLES", "")
	t.Setenv("WORKFLOW_LOCK_BACKEND", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"FIELD_ENGINEER", "MANAGER"}, cfg.Workflow.FieldRoles)
	assert.Equal(t, LockBackendLocal, cfg.Workflow.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Workflow.LockTTL())
	assert.Equal(t, 3*time.Second, cfg.Workflow.LockWait())
	assert.Equal(t, time.Minute, cfg.Workflow.DirectoryCacheTTL())
}

func TestLoadWorkflowOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_FIELD_ROLES", " field_engineer , ")
	t.Setenv("WORKFLOW_LOCK_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DIRECTORY_CACHE_TTL_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"FIELD_ENGINEER"}, cfg.Workflow.FieldRoles)
	assert.Equal(t, LockBackendRedis, cfg.Workflow.LockBackend)
	assert.Zero(t, cfg.Workflow.DirectoryCacheTTL())
}

func TestLoadRejectsInvalidLockBackend(t *testing.T) {
	t.Setenv("WORKFLOW_LOCK_BACKEND", "zookeeper")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("WORKFLOW_LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")
	_, err = Load()
	assert.Error(t, err)
}
