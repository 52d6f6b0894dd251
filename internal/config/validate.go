package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validatePipelines(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePolling() error {
	if err := ensurePositiveMap(map[string]int{
		"polling.interval_seconds":     c.Polling.IntervalSeconds,
		"polling.min_interval_seconds": c.Polling.MinIntervalSeconds,
		"polling.request_timeout":      c.Polling.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Polling.JitterSeconds < 0 {
		return errors.New("polling.jitter_seconds must be >= 0")
	}
	if c.Polling.RequestTimeout > c.Polling.MinIntervalSeconds {
		return errors.New("polling.request_timeout must not exceed polling.min_interval_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		if err := validateHTTPURL(topic); err != nil {
			return fmt.Errorf("notifications.ntfy_topic: %w", err)
		}
	}
	if callback := c.Notifications.CallbackURL; callback != "" {
		if err := validateHTTPURL(callback); err != nil {
			return fmt.Errorf("notifications.callback_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.URL == "" {
		return nil
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return errors.New("redis.url must use the redis:// or rediss:// scheme")
	}
	return nil
}

func (c *Config) validatePipelines() error {
	seen := make(map[string]struct{}, len(c.Pipelines))
	for idx, p := range c.Pipelines {
		field := fmt.Sprintf("pipelines[%d]", idx)
		switch p.Kind {
		case "cctray", "github":
		default:
			return fmt.Errorf("%s.kind: unsupported value %q", field, p.Kind)
		}
		if p.Project == "" {
			return fmt.Errorf("%s.project must be set", field)
		}
		if err := validateHTTPURL(p.URL); err != nil {
			return fmt.Errorf("%s.url: %w", field, err)
		}
		key := p.Kind + "|" + p.URL + "|" + p.Project
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%s duplicates an earlier pipeline", field)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
