package config

import (
	"os"

	pkgcfg "github.com/salumedx/platform/pkg/config"
)

type Config struct {
	ListenAddr       string
	LogLevel         string
	AuthURL          string
	CatalogURL       string
	PrescriptionsURL string
	PharmaciesURL    string
	JWTSecret        []byte

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func Load() *Config {
	return &Config{
		ListenAddr:       pkgcfg.EnvDefault("GATEWAY_ADDR", ":8080"),
		LogLevel:         pkgcfg.EnvDefault("LOG_LEVEL", "info"),
		AuthURL:          pkgcfg.MustEnv("AUTH_URL"),
		CatalogURL:       pkgcfg.MustEnv("CATALOG_URL"),
		PrescriptionsURL: pkgcfg.MustEnv("PRESCRIPTIONS_URL"),
		PharmaciesURL:    pkgcfg.MustEnv("PHARMACIES_URL"),
		JWTSecret:        []byte(pkgcfg.MustEnv("JWT_SECRET")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       pkgcfg.EnvIntDefault("REDIS_DB", 0),
	}
}
