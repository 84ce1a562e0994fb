package config

func Defaults() *Config {
	return &Config{
		Robot: RobotConfig{
			Name:       "brobbot",
			Adapter:    "shell",
			LogLevel:   "info",
			ScriptsDir: "~/.brobbot/scripts",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
		Adapters: AdaptersConfig{
			Shell: ShellConfig{
				User: "Shell",
			},
			Telegram: TelegramConfig{
				ParseMode: "Markdown",
			},
			WebSocket: WebSocketConfig{
				Host: "127.0.0.1",
				Port: 8081,
				Path: "/ws",
			},
		},
		Transcript: TranscriptConfig{
			Enabled:       false,
			DBPath:        "~/.brobbot/transcript.db",
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		HTTPClient: HTTPClientConfig{
			TimeoutSeconds: 30,
			MaxRetries:     2,
			UserAgent:      "brobbot",
		},
	}
}
