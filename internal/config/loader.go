package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/rollup/internal/db"
)

// Config carries service settings: HTTP address, database, and export
// directory. Defaults work for local development; config.yaml and ROLLUP_*
// environment variables override them.
type Config struct {
	ServerAddr string
	ExportDir  string
	Database   db.Config
}

// DefaultConfig returns the local development configuration.
func DefaultConfig() Config {
	return Config{
		ServerAddr: ":8080",
		ExportDir:  "",
		Database:   db.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()         // allow environment overrides
	v.SetEnvPrefix("ROLLUP") // map env vars like ROLLUP_SERVER_ADDR

	v.BindEnv("server.addr")
	v.BindEnv("export.dir")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("export.dir") {
		cfg.ExportDir = v.GetString("export.dir")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
