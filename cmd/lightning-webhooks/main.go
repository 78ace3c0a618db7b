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

	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	lightning "github.com/goliatone/go-lightning-webhooks"
	"github.com/goliatone/go-lightning-webhooks/access"
	"github.com/goliatone/go-lightning-webhooks/adapters/gocommand"
	"github.com/goliatone/go-lightning-webhooks/adapters/gologger"
	"github.com/goliatone/go-lightning-webhooks/core"
	"github.com/goliatone/go-lightning-webhooks/notify"
	redisstore "github.com/goliatone/go-lightning-webhooks/store/redis"
	sqlstore "github.com/goliatone/go-lightning-webhooks/store/sql"
)

const (
	envPrefix       = "LIGHTNING_"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lightning-webhooks: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := core.LoadConfig(ctx, core.EnvRawConfigLoader{Prefix: envPrefix}, core.Config{})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := gologger.NewSlogLogger(os.Stdout, cfg.LogLevel).GetLogger(cfg.ServiceName)

	client, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = client.Close() }()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}

	var claims core.ClaimStore = factory.ClaimStore()
	if cfg.Redis.Addr != "" {
		redisClient := redisstore.NewClient(cfg.Redis)
		defer func() { _ = redisClient.Close() }()
		redisClaims, err := redisstore.NewClaimStore(redisClient, redisstore.DefaultPrefix)
		if err != nil {
			return err
		}
		claims = redisClaims
		logger.Info("delivery claims backed by redis", "addr", cfg.Redis.Addr)
	}

	var notifiers []access.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = kafkaNotifier.Close() }()
		notifiers = append(notifiers, kafkaNotifier)

		if cfg.Kafka.JobsTopic != "" {
			enqueuer := notify.NewKafkaJobEnqueuer(cfg.Kafka.Brokers, cfg.Kafka.JobsTopic)
			defer func() { _ = enqueuer.Close() }()
			notifiers = append(notifiers, notify.NewJobNotifier(enqueuer))
		}
	}
	grants := access.NewGrantCommand(factory.AccessStore(), notify.Combine(notifiers...), logger)

	bus, err := gocommand.NewBus(jobqueuecommand.NewRegistry())
	if err != nil {
		return err
	}
	defer bus.Close()
	if err := gocommand.Handle[access.GrantMessage](bus, grants); err != nil {
		return fmt.Errorf("register grant command: %w", err)
	}
	if err := bus.Start(); err != nil {
		return err
	}

	invoices, err := lightning.NewInvoiceLookup(cfg.BTCPay, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return fmt.Errorf("invoice lookup: %w", err)
	}

	mux, err := lightning.NewMux(cfg, lightning.Dependencies{
		Grants:   gocommand.Dispatcher[access.GrantMessage]{},
		Claims:   claims,
		Invoices: invoices,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr,
			"btcpay", cfg.BTCPay.Enabled,
			"lnbits", cfg.LNbits.Enabled,
			"invoice_lookup", cfg.BTCPay.InvoiceLookupEnabled(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
