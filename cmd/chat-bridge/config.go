package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	bridge "github.com/zhaomh1998/vscode-copilot-chat"
)

// Config holds daemon configuration.
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Commands  CommandsConfig
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port int
}

// RateLimitConfig holds per-client inbound rate limit settings.
type RateLimitConfig struct {
	Enabled           bool
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
}

// CommandsConfig holds the host editor CLI argv templates. The open_chat
// template may contain "{message}", replaced with the chat seed text.
type CommandsConfig struct {
	OpenChat     []string `mapstructure:"open_chat"`
	ClearHistory []string `mapstructure:"clear_history"`
}

// loadConfig reads configuration from file and env. Env var overrides use
// prefix CHATBRIDGE_.
func loadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", bridge.DefaultPort)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.messages_per_second", 100)
	v.SetDefault("ratelimit.burst", 200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("commands.open_chat", []string{"code", "chat", "{message}"})
	v.SetDefault("commands.clear_history", []string{"code", "--command", "workbench.action.chat.clearHistory"})

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "reading config file")
		}
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "chat-bridge"))
		v.SetConfigName("config")
		// config file is optional when not named explicitly
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("CHATBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return c, nil
}
