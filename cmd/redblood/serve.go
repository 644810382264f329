package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"redblood/internal/auth"
	"redblood/internal/cache"
	"redblood/internal/coordinator"
	"redblood/internal/db"
	"redblood/internal/donations"
	"redblood/internal/metrics"
	"redblood/internal/notify"
	"redblood/internal/requests"
	"redblood/internal/seed"
	"redblood/internal/server"
	"redblood/internal/storage"
	"redblood/internal/store"
	"redblood/internal/store/memory"
	"redblood/internal/users"
	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP server",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "memory",
			Usage: "Keep all data in process memory instead of Postgres, seeded with demo data",
		},
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply pending migrations before serving",
			Value: true,
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	if config.CognitoIssuerURL == "" {
		return fmt.Errorf("set COGNITO_ISSUER_URL")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var checks []func(context.Context) error

	st, closeStore, err := openStore(ctx, cCtx, config, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if p, ok := st.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, p.Ping)
	}

	var centerCache donations.CenterCache
	redisClient, err := cache.Connect(ctx, config.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		centerCache = cache.NewCenters(redisClient, time.Duration(config.CenterCacheTTLSec)*time.Second, logger)
		checks = append(checks, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		logger.Info("center cache enabled")
	}

	var (
		accounts server.Accounts
		identity users.Identity
		avatars  users.Avatars
	)
	if config.CognitoClientID != "" || config.S3BucketName != "" {
		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return err
		}
		accounts, identity, avatars = awsServices(awsConfig, config)
	}

	jwkCache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initialize jwk cache: %w", err)
	}
	jwksURL := auth.JWKSURL(config.CognitoIssuerURL)
	if err := jwkCache.Register(ctx, jwksURL); err != nil {
		return fmt.Errorf("failed to register cognito jwks with cache: %w", err)
	}
	verifier := auth.NewVerifier(jwkCache, config.CognitoIssuerURL, config.CognitoClientID)

	var publisher notify.Publisher = notify.NewLogPublisher(logger)
	if len(config.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaPublisher(config.KafkaBrokers, config.KafkaEventsTopic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		publisher = kafka
		logger.WithField("topic", config.KafkaEventsTopic).Info("publishing events to kafka")
	}
	events := notify.NewEmitter(publisher, logger, m)

	reqs := requests.NewService(st, events, m, logger, requests.Options{
		DefaultRadiusKm: config.DefaultSearchRadiusKm,
		DefaultLimit:    config.DefaultListLimit,
		MaxLimit:        config.MaxListLimit,
	})
	services := server.Services{
		Requests:    reqs,
		Coordinator: coordinator.NewService(st, reqs, events, m, logger, nil),
		Donations: donations.NewService(st, centerCache, m, logger, donations.Options{
			DefaultRadiusKm: config.DefaultSearchRadiusKm,
			DefaultLimit:    config.DefaultListLimit,
			MaxLimit:        config.MaxListLimit,
		}),
		Users: users.NewService(st, identity, avatars, m, logger, users.Options{
			DefaultRadiusKm: config.DefaultSearchRadiusKm,
			DefaultLimit:    config.DefaultListLimit,
			MaxLimit:        config.MaxListLimit,
		}),
	}

	ready := func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	srv, err := server.New(config, logger, services, accounts, verifier, m, registry, ready)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

// openStore returns the memory store under --memory, otherwise a migrated Postgres store.
func openStore(ctx context.Context, cCtx *cli.Context, config *types.Config, logger logrus.FieldLogger) (store.Store, func(), error) {
	if cCtx.Bool("memory") {
		st := memory.New()
		if err := seed.SeedCenters(ctx, st, logger); err != nil {
			return nil, nil, err
		}
		if err := seed.SeedUsers(ctx, st, logger); err != nil {
			return nil, nil, err
		}
		logger.Warn("using in-memory store, data is lost on exit")
		return st, func() {}, nil
	}

	if err := requireDatabase(config); err != nil {
		return nil, nil, err
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	if cCtx.Bool("migrate") {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return store.NewPostgres(pool), pool.Close, nil
}

func awsServices(awsConfig aws.Config, config *types.Config) (server.Accounts, users.Identity, users.Avatars) {
	var (
		accounts server.Accounts
		identity users.Identity
		avatars  users.Avatars
	)

	if config.CognitoClientID != "" {
		c := auth.NewCognito(cognitoidentityprovider.NewFromConfig(awsConfig), config.CognitoClientID, config.CognitoUserPoolID)
		accounts, identity = c, c
	}
	if config.S3BucketName != "" {
		avatars = storage.NewAvatars(s3.NewFromConfig(awsConfig), config.S3BucketName)
	}

	return accounts, identity, avatars
}
