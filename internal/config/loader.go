package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/chronicle-engine/chronicle/internal/db"
)

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// EngineConfig holds the versioning engine settings.
type EngineConfig struct {
	// Serializer selects the snapshot codec: "json" (default) or "yaml".
	Serializer string
	// Enabled sets the process-wide recording flag at startup.
	Enabled bool
}

// Config aggregates everything the server binary needs.
type Config struct {
	DB     db.Config
	Server ServerConfig
	Engine EngineConfig
}

func Default() Config {
	return Config{
		DB: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Engine: EngineConfig{
			Serializer: "json",
			Enabled:    true,
		},
	}
}

// Load reads config.yaml from configPath, with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()            // allow environment overrides
	v.SetEnvPrefix("CHRONICLE") // map env vars like CHRONICLE_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("engine.serializer")
	v.BindEnv("engine.enabled")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("engine.serializer") {
		cfg.Engine.Serializer = v.GetString("engine.serializer")
	}
	if v.IsSet("engine.enabled") {
		cfg.Engine.Enabled = v.GetBool("engine.enabled")
	}

	return cfg, nil
}
