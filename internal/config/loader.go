package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/reportvc/internal/db"
)

// Config is the full server configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Storage  StorageConfig
	Provider ProviderConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// StorageConfig selects the version store backend.
type StorageConfig struct {
	// Driver is "postgres" or "memory". Memory is for local development
	// only; nothing survives a restart.
	Driver         string
	MigrationsPath string
}

// ProviderConfig holds the generation provider settings. The API key is
// only read from the environment, never from the config file.
type ProviderConfig struct {
	APIKey string
	Model  string
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Driver:         "postgres",
			MigrationsPath: "./migrations",
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("REPORTVC")

	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("provider.api_key", "OPENAI_API_KEY")
	v.BindEnv("provider.model", "OPENAI_MODEL")
	v.BindEnv("server.addr", "REPORTVC_ADDR")
	v.BindEnv("storage.driver", "REPORTVC_STORAGE_DRIVER")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
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
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("storage.driver") {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if v.IsSet("storage.migrations_path") {
		cfg.Storage.MigrationsPath = v.GetString("storage.migrations_path")
	}
	if v.IsSet("provider.api_key") {
		cfg.Provider.APIKey = v.GetString("provider.api_key")
	}
	if v.IsSet("provider.model") {
		cfg.Provider.Model = v.GetString("provider.model")
	}

	return cfg, nil
}
