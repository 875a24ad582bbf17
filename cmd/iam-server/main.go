package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	iam "github.com/goliatone/go-iam"
	"github.com/goliatone/go-iam/activitymap"
	"github.com/goliatone/go-iam/api"
	"github.com/goliatone/go-iam/notify"
	"github.com/goliatone/go-iam/repository"
	"github.com/goliatone/go-iam/social"
	"github.com/goliatone/go-iam/social/providers/discord"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/extra/bundebug"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "iam-server")

	if err := run(logger); err != nil {
		logger.Error("iam-server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := iam.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := repository.CreateSchema(ctx, db); err != nil {
		return err
	}

	accounts := repository.NewAccounts(db)
	activity := activitymap.Sink(activitymap.LogPublisher(logger))
	hasher := iam.NewHasher(cfg.Hashing)

	sender, closeSender := newSender(cfg.Notify, logger)
	defer closeSender()

	dispatcher := notify.NewDispatcher(sender,
		notify.WithLogger(logger),
		notify.WithWorkers(cfg.Notify.Workers),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithSendTimeout(cfg.Notify.SendTimeout),
	)
	dispatcher.Start()

	tokens := iam.NewTokenService(cfg.Token, accounts,
		iam.WithTokenLogger(logger),
		iam.WithTokenActivitySink(activity),
	)

	svc := api.Services{
		Login: iam.NewLoginService(accounts, hasher, tokens,
			iam.WithLoginLogger(logger),
			iam.WithLoginActivitySink(activity),
		),
		Tokens:   tokens,
		Resolver: iam.NewIdentityResolver(accounts, logger),
		Accounts: accounts,
		Manager:  accounts,
		Stats:    accounts,
		Logger:   logger,
	}

	if cfg.Discord.Enabled() {
		svc.Provider = discord.New(discord.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			CallbackURL:  cfg.Discord.CallbackURL,
		})
		svc.States = social.NewStateSigner([]byte(cfg.Token.Secret), 10*time.Minute)
		svc.Provisioner = social.NewProvisioner(accounts, hasher, tokens,
			social.WithLogger(logger),
			social.WithNotifier(dispatcher),
			social.WithActivitySink(activity),
			social.WithRequireVerifiedEmail(cfg.Discord.RequireVerifiedEmail),
		)
	}

	app := api.NewServer(svc).NewApp(cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("iam-server listening", "addr", cfg.Server.Addr)
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", "error", err)
	}

	logger.Info("iam-server stopped")
	return nil
}

func newSender(cfg iam.NotifyConfig, logger *slog.Logger) (notify.Sender, func()) {
	if cfg.Driver != iam.NotifyRedis {
		return notify.LogSender{Logger: logger}, func() {}
	}

	client := redis.NewClient(notify.RedisOptions(cfg.RedisAddr, cfg.RedisPassword))
	return notify.NewRedisOutbox(client, cfg.RedisKey), func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
}
