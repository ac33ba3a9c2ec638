package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/apipulse/internal/auth"
	"github.com/ignatij/apipulse/internal/cli"
	"github.com/ignatij/apipulse/internal/config"
	internal_http "github.com/ignatij/apipulse/internal/http"
	"github.com/ignatij/apipulse/internal/log"
	internal_storage "github.com/ignatij/apipulse/internal/storage"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "apipulse",
	Short:         "API Pulse task and execution-log backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log.Configure(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to initialize store")
		}
		defer store.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		router := internal_http.NewRouter(store, auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience), internal_http.Options{
			ServiceRoleKey:    cfg.ServiceRoleKey,
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			Registry:          reg,
		})

		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Port
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return internal_http.StartServer(ctx, port, router)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		connStr, err := dbConnString(cmd)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		if err := internal_storage.RunMigrations(connStr, source); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied successfully")
		return nil
	},
}

var devTokenCmd = &cobra.Command{
	Use:   "dev-token",
	Short: "Sign a short-lived user token with AUTH_JWT_SECRET for local testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required")
		}
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = uuid.NewString()
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := auth.SignToken(cfg.JWTSecret, cfg.JWTAudience, user, ttl)
		if err != nil {
			return errors.Wrap(err, "failed to sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func dbConnString(cmd *cobra.Command) (string, error) {
	if connStr, _ := cmd.Flags().GetString("db"); connStr != "" {
		return connStr, nil
	}
	return cfg.DBConnString()
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	connStr, err := dbConnString(cmd)
	if err != nil {
		return nil, err
	}
	store, err := internal_storage.InitStore(connStr)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string (optional if DB_URL or DB_* env vars are set)")
	serveCmd.Flags().String("port", "", "Port to listen on (defaults to PORT or 8080)")
	migrateCmd.Flags().String("source", internal_storage.DefaultMigrationsSource, "Migrations source URL")
	devTokenCmd.Flags().String("user", "", "User ID to put in the sub claim (random when empty)")
	devTokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")

	rootCmd.AddCommand(serveCmd, migrateCmd, devTokenCmd)
	cli.SetupCLI(rootCmd, openStore)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
