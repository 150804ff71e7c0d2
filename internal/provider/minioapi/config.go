package minioapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tracelight-labs/tracelight-go/internal/platform/env"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("TRACELIGHT_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:  env.String("TRACELIGHT_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("TRACELIGHT_MINIO_ACCESS_KEY", "tracelight"),
		SecretKey: env.String("TRACELIGHT_MINIO_SECRET_KEY", "tracelightminio"),
		Region:    env.String("TRACELIGHT_MINIO_REGION", "us-east-1"),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// WithRegion returns a copy of the config pointed at another region.
func (c Config) WithRegion(region string) Config {
	if strings.TrimSpace(region) != "" {
		c.Region = region
	}
	return c
}
