package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Component ComponentConfig `mapstructure:"component"`
	Server    ServerConfig    `mapstructure:"server"`
	Pins      PinsConfig      `mapstructure:"pin_tables"`
}

type ComponentConfig struct {
	Name            string        `mapstructure:"name"`
	HalrcmdURI      string        `mapstructure:"halrcmd_uri"`
	HalrcompURI     string        `mapstructure:"halrcomp_uri"`
	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PinsConfig struct {
	Table       string   `mapstructure:"table"`
	SearchPaths []string `mapstructure:"search_paths"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("component.name", "default")
	viper.SetDefault("component.halrcmd_uri", "tcp://127.0.0.1:5001")
	viper.SetDefault("component.halrcomp_uri", "tcp://127.0.0.1:5002")
	viper.SetDefault("component.heartbeat_period", "3s")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("pin_tables.table", "demo")
	viper.SetDefault("pin_tables.search_paths", []string{"configs/pins"})

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HALR")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
