package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "无法写入临时配置文件")
	return path
}

// TestLoadConfigMergesDefaults YAML 中未出现的字段保留默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
rabbitmq:
  url: "amqp://guest:guest@mq:5672/"
  prefetch_count: 8
  consumer_workers:
    evaluation_workers: 5
minio:
  resumesBucket: "cv"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)
	assert.Equal(t, 8, cfg.RabbitMQ.PrefetchCount)
	assert.Equal(t, 5, cfg.WorkerCount("evaluation_workers"))
	assert.Equal(t, "cv", cfg.MinIO.ResumesBucket)

	// defaults survive
	assert.Equal(t, "q.ai_evaluation", cfg.RabbitMQ.EvaluationQueue)
	assert.Equal(t, "interview-media", cfg.MinIO.MediaBucket)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 200, cfg.Server.MaxUploadMB)
	assert.Equal(t, 48*time.Hour, GetDuration(cfg.Token.TTL, 0))
	assert.Equal(t, 600*time.Second, GetDuration(cfg.RabbitMQ.JobTimeout, 0))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unterminated")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ALIYUN_API_KEY", "sk-env")
	t.Setenv("MAILGUN_DOMAIN", "mg.example.org")
	t.Setenv("MAILGUN_TEST_MODE", "yes")
	t.Setenv("APP_URL", "https://jobs.example.org")

	path := writeTempConfig(t, `
aliyun:
  api_key: "sk-file"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Aliyun.APIKey)
	assert.Equal(t, "mg.example.org", cfg.Mail.Domain)
	assert.Equal(t, "noreply@mg.example.org", cfg.Mail.FromAddress)
	assert.True(t, cfg.Mail.DisableSend)
	assert.Equal(t, "https://jobs.example.org", cfg.Server.AppURL)
}

func TestGetModelForTask(t *testing.T) {
	cfg := createDefaultConfig()
	cfg.Aliyun.TaskModels = map[string]string{"grader": "qwen-max"}

	assert.Equal(t, "qwen-max", cfg.GetModelForTask("grader"))
	assert.Equal(t, "qwen-plus", cfg.GetModelForTask("scorer"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, GetDuration("garbage", 5*time.Second))
	assert.Equal(t, 90*time.Second, GetDuration("90s", 5*time.Second))
}

func TestWorkerCountFloor(t *testing.T) {
	cfg := createDefaultConfig()
	cfg.RabbitMQ.ConsumerWorkers = map[string]int{"evaluation_workers": 0}
	assert.Equal(t, 1, cfg.WorkerCount("evaluation_workers"))
	assert.Equal(t, 1, cfg.WorkerCount("unknown"))
}
