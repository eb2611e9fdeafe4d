package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/iai-protocole/registration/api"
	"github.com/iai-protocole/registration/cache"
	"github.com/iai-protocole/registration/dynamo"
	"github.com/iai-protocole/registration/metrics"
	"github.com/iai-protocole/registration/payment"
	"github.com/iai-protocole/registration/pawapay"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is only there for local dev.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	env := api.Environment(getEnvOrDefault("ENVIRONMENT", string(api.LOCAL)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get aws config: %w", err)
	}

	db := dynamo.NewDB(
		dynamodb.NewFromConfig(awsCfg),
		getEnvOrDefault("DYNAMO_TABLE_NAME", "Registrations"),
	)

	var registrationCache api.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		registrationCache = cache.NewRedis(client)

		logger.Info("registration cache mirror enabled", slog.String("addr", redisAddr))
	}

	gateway := pawapay.NewClient(
		getEnvOrDefault("PAWAPAY_BASE_URL", "https://api.sandbox.pawapay.io"),
		os.Getenv("PAWAPAY_API_TOKEN"),
		nil,
		logger,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := api.NewAPI(
		db,
		registrationCache,
		gateway,
		payment.RealClock(),
		createEmailSender(logger, env, awsCfg),
		metrics.New(registry),
		logger,
		env,
		api.Config{
			AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
			EmailFromAddress: getEnvOrDefault("EMAIL_FROM_ADDRESS", "noreply@iai-protocole.com"),
			Payment:          payment.DefaultConfig(),
			MetricsGatherer:  registry,
		},
	)

	s := &http.Server{
		Handler: a.Handler(),
		Addr: net.JoinHostPort(
			getEnvOrDefault("HOST", "0.0.0.0"),
			getEnvOrDefault("PORT", "8080"),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", slog.String("addr", s.Addr))

		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down")
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return defaultVal
}
