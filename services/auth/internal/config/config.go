package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	pkgcfg "github.com/salumedx/platform/pkg/config"
	"github.com/salumedx/platform/pkg/db"
	"github.com/salumedx/platform/services/auth/internal/models"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	DatabaseURL string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MaxSessions   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found, using system environment")
	}

	cfg := &Config{
		ListenAddr: pkgcfg.EnvDefault("AUTH_ADDR", ":8081"),
		LogLevel:   pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: pkgcfg.MustEnv("DATABASE_URL"),

		AccessSecret:  []byte(pkgcfg.MustEnv("JWT_SECRET")),
		RefreshSecret: []byte(pkgcfg.MustEnv("REFRESH_SECRET")),
		AccessTTL:     pkgcfg.EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    pkgcfg.EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),
		MaxSessions:   pkgcfg.EnvIntDefault("AUTH_MAX_SESSIONS", 5),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       pkgcfg.EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: pkgcfg.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   pkgcfg.EnvDefault("KAFKA_AUTH_TOPIC", "auth_events"),
	}

	return cfg
}

func InitDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.PhysicianProfile{},
		&models.PatientProfile{},
		&models.RefreshToken{},
		&models.RevokedToken{},
	); err != nil {
		return nil, err
	}

	return gdb, nil
}
