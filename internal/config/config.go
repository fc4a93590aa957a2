package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dvloznov/sms-expense-tracker/internal/bankdir"
	"github.com/dvloznov/sms-expense-tracker/internal/domain"
)

// Config represents the application configuration
type Config struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	DBPath           string        `mapstructure:"db_path"`
	Model            string        `mapstructure:"model"`
	InferenceTimeout time.Duration `mapstructure:"inference_timeout"`
	DisableInference bool          `mapstructure:"disable_inference"`
	AutoProcess      bool          `mapstructure:"auto_process"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`

	// Banks replaces the built-in directory when set. Order matters: the
	// first matching entry classifies a sender.
	Banks []domain.BankIdentifier `mapstructure:"banks"`
}

// Load reads configuration from the given TOML file and environment
// variables. An empty path loads defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "expenses.db")
	v.SetDefault("model", "gemini-2.5-flash")
	v.SetDefault("inference_timeout", "10s")
	v.SetDefault("disable_inference", false)
	v.SetDefault("auto_process", true)
	v.SetDefault("workers", 5)
	v.SetDefault("queue_size", 100)

	v.SetEnvPrefix("SMSTRACKER")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Banks) == 0 {
		config.Banks = bankdir.Default()
	}

	return &config, nil
}
