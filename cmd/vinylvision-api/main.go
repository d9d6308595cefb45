package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vinylvision/backend/internal/catalog"
	"github.com/vinylvision/backend/internal/config"
	"github.com/vinylvision/backend/internal/database"
	"github.com/vinylvision/backend/internal/discogs"
	"github.com/vinylvision/backend/internal/extraction"
	"github.com/vinylvision/backend/internal/library"
	"github.com/vinylvision/backend/internal/logging"
	"github.com/vinylvision/backend/internal/remotestore"
	"github.com/vinylvision/backend/internal/scanner"
	"github.com/vinylvision/backend/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vinylvision-api",
		Short: "VinylVision record catalog backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("discogs-token", "", "Discogs personal access token")
	cmd.PersistentFlags().String("extractor", defaults.GetString("extractor"), "Extraction strategy (gemini, tesseract)")
	cmd.PersistentFlags().String("gemini-api-key", "", "Gemini API key")
	cmd.PersistentFlags().String("gemini-model", defaults.GetString("gemini.model"), "Gemini model identifier")
	cmd.PersistentFlags().String("tesseract-binary", defaults.GetString("tesseract.binary"), "Tesseract executable path")
	cmd.PersistentFlags().String("supabase-url", "", "Supabase project URL")
	cmd.PersistentFlags().String("supabase-anon-key", "", "Supabase anon key")
	cmd.PersistentFlags().String("supabase-column-style", "", "Remote column convention (snake, camel, legacy)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "discogs.token", "discogs-token")
	bindFlag(cmd, "extractor", "extractor")
	bindFlag(cmd, "gemini.api_key", "gemini-api-key")
	bindFlag(cmd, "gemini.model", "gemini-model")
	bindFlag(cmd, "tesseract.binary", "tesseract-binary")
	bindFlag(cmd, "supabase.url", "supabase-url")
	bindFlag(cmd, "supabase.anon_key", "supabase-anon-key")
	bindFlag(cmd, "supabase.column_style", "supabase-column-style")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newExtractor(appConfig config.AppConfig) extraction.Extractor {
	if appConfig.Extractor == config.ExtractorTesseract {
		return extraction.NewLocalExtractor(extraction.LocalConfig{
			Binary: appConfig.TesseractBinary,
		})
	}
	return extraction.NewGeminiExtractor(extraction.GeminiConfig{
		APIKey: appConfig.GeminiAPIKey,
		Model:  appConfig.GeminiModel,
	})
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	remoteStore := remotestore.New(remotestore.Config{
		URL:         appConfig.SupabaseURL,
		APIKey:      appConfig.SupabaseAnonKey,
		ColumnStyle: appConfig.SupabaseColumnStyle,
		Logger:      logger,
	})

	dispatcher := server.NewEventDispatcher()
	libraryService, err := library.NewService(library.ServiceConfig{
		Database: db,
		Remote:   remoteStore,
		Clock:    time.Now,
		Logger:   logger,
		Notify:   dispatcher.Publish,
	})
	if err != nil {
		return err
	}
	if err := libraryService.Load(ctx); err != nil {
		return err
	}

	catalogClient := discogs.NewClient(discogs.Config{
		Token:  appConfig.DiscogsToken,
		Logger: logger,
	})

	reconciler, err := scanner.NewReconciler(scanner.Config{
		Extractor:  newExtractor(appConfig),
		Catalog:    catalogClient,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Library:    libraryService,
		Scanner:    reconciler,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Let scheduled remote writes drain before the process exits.
		libraryService.Flush()
		return nil
	case err := <-errCh:
		return err
	}
}
