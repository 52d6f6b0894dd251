package testsupport

import (
	"path/filepath"
	"testing"

	"buildwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Alerts have no topic so nothing leaves the machine.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Paths.APIToken = ""
	cfgVal.Redis.URL = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPipeline declares a pipeline in the generated config.
func WithPipeline(name, kind, url, project string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipelines = append(b.cfg.Pipelines, config.Pipeline{
			Name:    name,
			Kind:    kind,
			URL:     url,
			Project: project,
		})
	}
}

// WithNtfyTopic points alert delivery at topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithAPIToken enables bearer authentication on the API.
func WithAPIToken(secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = secret
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
