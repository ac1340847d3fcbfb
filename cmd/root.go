package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jorge5452/Melodify-Deezer/bot"
	"github.com/Jorge5452/Melodify-Deezer/cache"
	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/core/deezer"
	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/core/pipeline"
	"github.com/Jorge5452/Melodify-Deezer/db"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/repository"
	"github.com/Jorge5452/Melodify-Deezer/server"
	"github.com/Jorge5452/Melodify-Deezer/storage"
	"github.com/Jorge5452/Melodify-Deezer/transport"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

var rootCmd = &cobra.Command{
	Use:   "melodify",
	Short: "Melodify is a Telegram bot that turns Deezer links into audio.",
	Run: func(cmd *cobra.Command, args []string) {
		runBot()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
	})
	defer logger.Sync()

	if cfg.TelegramToken == "" {
		logger.Fatal("TELEGRAM_TOKEN is not set")
	}
	if cfg.DeezerARL == "" {
		logger.Fatal("DEEZER_ARL is not set")
	}
	if cfg.VaultChatID == 0 {
		logger.Fatal("VAULT_CHAT_ID is not set")
	}

	client := transport.NewClient(cfg.TelegramToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Fatal("Telegram token rejected", logger.ErrorField(err))
	}
	logger.Info("Authenticated with Telegram", logger.String("username", me.Username))

	materializer := fetch.NewDeemixMaterializer(cfg.DeemixPath, cfg.DeezerARL)
	if err := materializer.EnsureLogin(); err != nil {
		logger.Fatal("Downloader login failed", logger.ErrorField(err))
	}

	store := vault.New(cfg.VaultPath, cfg.VaultBackupPath)
	store.SetMaxEntries(cfg.VaultMaxEntries)

	catalogClient := deezer.NewClient()
	catalogClient.SetBaseURL(cfg.DeezerAPIURL)

	var catalog pipeline.Catalog = catalogClient
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, metadata cache disabled", logger.ErrorField(err))
		} else {
			defer cache.CloseRedis()
			catalog = cache.NewCachedCatalog(catalogClient)
			logger.Info("Redis metadata cache enabled")
		}
	}

	orchestrator := fetch.NewOrchestrator(materializer, cfg.DownloadDir, cfg.FetchTimeout, cfg.FetchRetries)
	channel := transport.NewVaultChannel(client, cfg.VaultChatID)
	messenger := transport.NewMessenger(client)

	pipe := pipeline.New(store, orchestrator, catalog, channel, messenger)

	if cfg.MinioEnabled() {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Warn("MinIO unavailable, archive disabled", logger.ErrorField(err))
		} else {
			pipe = pipe.WithArchiver(storage.NewArchive(cfg))
			logger.Info("MinIO archive enabled")
		}
	}

	if cfg.DBEnabled() {
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Warn("MySQL unavailable, bookkeeping disabled", logger.ErrorField(err))
		} else {
			defer db.CloseGormDB()
			if err := db.AutoMigrateModels(&model.PublishedTrack{}); err != nil {
				logger.Warn("Migration failed, bookkeeping disabled", logger.ErrorField(err))
			} else {
				pipe = pipe.WithRecorder(recorderFunc(repository.NewPublishedTrackRepository().Record))
				logger.Info("MySQL bookkeeping enabled")
			}
		}
	}

	srv := server.New(cfg, store)
	srv.Start()

	b := bot.New(client, pipe, cfg.MaxBitrate)
	logger.Info("Bot loop starting",
		logger.Int("maxBitrate", cfg.MaxBitrate),
		logger.Int("vaultEntries", store.Len()))

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Bot loop exited", logger.ErrorField(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Liveness server shutdown failed", logger.ErrorField(err))
	}
	logger.Info("Bot stopped")
}

// recorderFunc adapts a plain function to the pipeline's Recorder.
type recorderFunc func(ctx context.Context, track model.PublishedTrack) error

func (f recorderFunc) Record(ctx context.Context, track model.PublishedTrack) error {
	return f(ctx, track)
}
