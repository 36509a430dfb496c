package config

import "context"

type Store interface {
	Get(ctx context.Context) (*Config, error)
	Save(ctx context.Context, c *Config) error
}
