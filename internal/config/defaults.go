package config

const (
	defaultConfigPath             = "~/.config/buildwatch/config.toml"
	defaultStateDir               = "~/.local/share/buildwatch"
	defaultLogDir                 = "~/.local/share/buildwatch/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultPollIntervalSeconds    = 60
	defaultPollMinIntervalSeconds = 15
	defaultPollJitterSeconds      = 5
	defaultPollRequestTimeout     = 10
	defaultNotifyRequestTimeout   = 10
	defaultGitHubAPIURL           = "https://api.github.com"
	defaultRedisChannel           = "buildwatch.changes"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Polling: Polling{
			IntervalSeconds:    defaultPollIntervalSeconds,
			MinIntervalSeconds: defaultPollMinIntervalSeconds,
			JitterSeconds:      defaultPollJitterSeconds,
			RequestTimeout:     defaultPollRequestTimeout,
		},
		Notifications: Notifications{
			Enabled:        true,
			Start:          true,
			Completion:     true,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		GitHub: GitHub{
			APIURL: defaultGitHubAPIURL,
		},
		Display: Display{
			StatusColor: true,
		},
		Redis: Redis{
			Channel: defaultRedisChannel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
