package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeGitHub()
	c.normalizeRedis()
	c.normalizePipelines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("BUILDWATCH_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BUILDWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.CallbackURL = strings.TrimSpace(c.Notifications.CallbackURL)
}

func (c *Config) normalizeGitHub() {
	c.GitHub.APIURL = strings.TrimRight(strings.TrimSpace(c.GitHub.APIURL), "/")
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = defaultGitHubAPIURL
	}
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	if c.GitHub.Token == "" {
		if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.GitHub.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeRedis() {
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	c.Redis.Channel = strings.TrimSpace(c.Redis.Channel)
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
}

func (c *Config) normalizePipelines() {
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == "" {
			p.Kind = "cctray"
		}
		p.URL = strings.TrimSpace(p.URL)
		p.Project = strings.TrimSpace(p.Project)
		p.User = strings.TrimSpace(p.User)
		p.Token = strings.TrimSpace(p.Token)
		if p.Kind == "github" {
			if p.URL == "" {
				p.URL = c.GitHub.APIURL
			}
			if p.Token == "" {
				p.Token = c.GitHub.Token
			}
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
