package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "RENTDESK"

type Config struct {
	Port       string `envconfig:"PORT" default:"8081"`
	DBDSN      string `envconfig:"DB_DSN" default:"rentdesk.db"` // sqlite file in project root
	LogFile    string `envconfig:"LOG_FILE" default:"./rentdesk.log"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SeedDemo   bool   `envconfig:"SEED_DEMO" default:"false"`
	BodyLimit  int    `envconfig:"BODY_LIMIT" default:"1048576"`
	RatePerMin int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// Load reads RENTDESK_* variables, after an optional .env in the working directory.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s LOG_LEVEL=%s REDIS=%t",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.LogLevel, cfg.RedisURL != "")
	return cfg, nil
}
