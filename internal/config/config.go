package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CALLRELAY"

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	StaticPath     string        `mapstructure:"static_path"`
	Secret         string        `mapstructure:"secret"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	Backpressure   string        `mapstructure:"backpressure"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ICEServers     []ICEServer   `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "")
	v.SetDefault("secret", "callrelay-dev-secret")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("rate_limit", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads configuration from path, or from config/config.<CONFIG_ENV>.yaml
// when path is empty. A missing file falls back to defaults. Environment
// variables (CALLRELAY_PORT, ...) and explicitly set flags override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName := path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, name := range []string{"port", "mode", "log_level"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must be positive"))
	}
	if c.PingPeriod <= 0 || c.PongWait <= 0 {
		errs = append(errs, errors.New("ping_period and pong_wait must be positive"))
	}
	if c.PingPeriod >= c.PongWait {
		errs = append(errs, errors.New("ping_period must be shorter than pong_wait"))
	}
	return errors.Join(errs...)
}
