package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/versioned/internal/db"
)

// KafkaConfig controls the optional version-event producer.
type KafkaConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
}

// Config is the full runtime configuration of the bundled server.
type Config struct {
	Database       db.Config
	ServerAddr     string
	MigrationsPath string
	Kafka          KafkaConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database:       db.DefaultConfig(),
		ServerAddr:     ":8080",
		MigrationsPath: "./migrations",
		Kafka: KafkaConfig{
			Topic: "entity.versioned",
		},
	}
}

// Load reads config.yaml from the given path with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()              // allow environment overrides
	v.SetEnvPrefix("VERSIONED")   // map env vars like VERSIONED_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("migrations.path")
	v.BindEnv("kafka.enabled")
	v.BindEnv("kafka.broker")
	v.BindEnv("kafka.topic")
	v.BindEnv("kafka.username")
	v.BindEnv("kafka.password")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Use defaults + env
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
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}
	if v.IsSet("kafka.enabled") {
		cfg.Kafka.Enabled = v.GetBool("kafka.enabled")
	}
	if v.IsSet("kafka.broker") {
		cfg.Kafka.Broker = v.GetString("kafka.broker")
	}
	if v.IsSet("kafka.topic") {
		cfg.Kafka.Topic = v.GetString("kafka.topic")
	}
	if v.IsSet("kafka.username") {
		cfg.Kafka.Username = v.GetString("kafka.username")
	}
	if v.IsSet("kafka.password") {
		cfg.Kafka.Password = v.GetString("kafka.password")
	}

	return cfg, nil
}
