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

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/coursehub/integration-api/internal/application/order"
	"github.com/coursehub/integration-api/internal/application/otp"
	"github.com/coursehub/integration-api/internal/application/payment"
	"github.com/coursehub/integration-api/internal/config"
	"github.com/coursehub/integration-api/internal/infrastructure/dynamo"
	"github.com/coursehub/integration-api/internal/infrastructure/gateway"
	jwtinfra "github.com/coursehub/integration-api/internal/infrastructure/jwt"
	"github.com/coursehub/integration-api/internal/infrastructure/memory"
	"github.com/coursehub/integration-api/internal/infrastructure/postgres"
	redisinfra "github.com/coursehub/integration-api/internal/infrastructure/redis"
	"github.com/coursehub/integration-api/internal/infrastructure/smtp"
	"github.com/coursehub/integration-api/internal/pkg/logger"
	"github.com/coursehub/integration-api/internal/pkg/metrics"
	transporthttp "github.com/coursehub/integration-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// DynamoDB is only dialled when a store needs it.
	var dynamoClient *dynamodb.Client
	if cfg.OTPStore == "dynamo" || cfg.OrderStore == "dynamo" {
		c, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		dynamo.Bootstrap(ctx, c, cfg.DynamoTables)
		dynamoClient = c
	}

	otpStore, closeOTP, err := newOTPStore(cfg, dynamoClient)
	if err != nil {
		return err
	}
	defer closeOTP()

	orderStore, closeOrders, err := newOrderStore(ctx, cfg, dynamoClient)
	if err != nil {
		return err
	}
	defer closeOrders()

	// JWT provider (optional; without it no request carries claims and
	// every payment initiation is answered 401).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		zap.L().Warn("JWT provider not available, payment routes disabled", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsHandler, err := metrics.Register(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mailer := smtp.NewMailer(cfg.SMTP, cfg.AppName)
	batches := order.NewManager(orderStore)

	deps := &transporthttp.Deps{
		OTPService: otp.NewService(otpStore, mailer, cfg.OTPTTL, cfg.AppName),
		PaymentService: payment.NewService(batches,
			gateway.NewESewa(cfg.ESewa),
			gateway.NewKhalti(cfg.Khalti, cfg.GatewayTimeout),
		),
		JWTProvider: jwtProvider,
		Metrics:     metricsHandler,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("otp_store", cfg.OTPStore),
			zap.String("order_store", cfg.OrderStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	zap.L().Info("server stopped")
	return nil
}

func newOTPStore(cfg *config.Config, dynamoClient *dynamodb.Client) (otp.Store, func(), error) {
	switch cfg.OTPStore {
	case "dynamo":
		return dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs), func() {}, nil
	case "redis":
		client := redisinfra.NewClient(cfg.RedisAddr, cfg.RedisDB)
		return redisinfra.NewOTPRepo(client), func() { _ = client.Close() }, nil
	case "memory":
		zap.L().Warn("using in-process OTP store; codes are lost on restart and not shared between instances")
		return memory.NewOTPRepo(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTPStore)
	}
}

func newOrderStore(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client) (order.Store, func(), error) {
	switch cfg.OrderStore {
	case "dynamo":
		return dynamo.NewOrderRepo(dynamoClient, cfg.DynamoTables.Orders), func() {}, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure orders schema: %w", err)
		}
		return postgres.NewOrderRepo(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ORDER_STORE %q", cfg.OrderStore)
	}
}
