package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ratelimit-gateway/middleware/ratelimit/infra"
)

type config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	UpstreamURL string `envconfig:"UPSTREAM_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool   `envconfig:"LOG_DEV" default:"false"`

	RateEnabled        bool          `envconfig:"RATE_ENABLED" default:"true"`
	RateLimit          int           `envconfig:"RATE_LIMIT" default:"60"`
	RatePeriod         time.Duration `envconfig:"RATE_PERIOD" default:"60s"`
	RateMessage        string        `envconfig:"RATE_MESSAGE" default:"Rate limit exceeded"`
	RateNamespace      string        `envconfig:"RATE_NAMESPACE" default:"ratelimiter"`
	RateStore          string        `envconfig:"RATE_STORE" default:"memory"`
	RateMaxKeys        int64         `envconfig:"RATE_MAX_KEYS" default:"100000"`
	RateKeyHeader      string        `envconfig:"RATE_KEY_HEADER"`
	RateDisableHeaders bool          `envconfig:"RATE_DISABLE_HEADERS" default:"false"`
	RateLockTimeout    time.Duration `envconfig:"RATE_LOCK_TIMEOUT" default:"1s"`
	TrustXFF           bool          `envconfig:"TRUST_XFF" default:"false"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	// RedisConnectAttempts limita os pings com backoff na subida.
	RedisConnectAttempts int `envconfig:"REDIS_CONNECT_ATTEMPTS" default:"5"`

	// NTPServer vazio usa o relógio local.
	NTPServer    string        `envconfig:"NTP_SERVER"`
	NTPSyncEvery time.Duration `envconfig:"NTP_SYNC_EVERY" default:"10m"`
}

// loadEnvFile carrega .env se existir; variáveis já exportadas têm prioridade.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, err
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL %q", c.UpstreamURL)
	}
	if c.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be > 0")
	}
	if c.RatePeriod < time.Second {
		return errors.New("RATE_PERIOD must be >= 1s")
	}
	switch c.storeDriver() {
	case infra.DriverMemory, infra.DriverRistretto, infra.DriverRedis:
	default:
		return fmt.Errorf("unknown RATE_STORE %q", c.RateStore)
	}
	if c.storeDriver() == infra.DriverRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when RATE_STORE=redis")
	}
	if c.RedisConnectAttempts <= 0 {
		return errors.New("REDIS_CONNECT_ATTEMPTS must be > 0")
	}
	return nil
}

func (c config) storeDriver() infra.Driver {
	return infra.Driver(strings.ToLower(strings.TrimSpace(c.RateStore)))
}
