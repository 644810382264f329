package main

import (
	"context"
	"fmt"

	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads PREFIX_NAME variables. envconfig falls back to the bare NAME when the
// prefixed one is unset, so DATABASE_URL works as well as APP_DATABASE_URL.
func loadConfig(cCtx *cli.Context) (*types.Config, error) {
	c := new(types.Config)
	if err := envconfig.Process(cCtx.String("env-prefix"), c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if c.MaxListLimit < c.DefaultListLimit {
		return nil, fmt.Errorf("MAX_LIST_LIMIT (%d) must not be below DEFAULT_LIST_LIMIT (%d)", c.MaxListLimit, c.DefaultListLimit)
	}
	if c.DefaultSearchRadiusKm <= 0 {
		return nil, fmt.Errorf("DEFAULT_SEARCH_RADIUS_KM must be positive")
	}

	return c, nil
}

func requireDatabase(c *types.Config) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("set DATABASE_URL")
	}
	return nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}
