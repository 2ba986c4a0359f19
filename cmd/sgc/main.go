// Command sgc runs the commitment tracking API and its maintenance tasks.
//
//	@title						SGC-Maule API
//	@version					1.0
//	@description				Commitment tracking for a hierarchical public-health organization.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	UserID
//	@in							header
//	@name						X-User-ID
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/config"
	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/observability"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
	"github.com/nicoiwnl/SGC-Maule/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// cfg is loaded once by the root command before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "sgc",
	Short:         "SGC-Maule commitment tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		sysutil.SetupLogging(os.Stderr, sysutil.LogOptions{
			Level:   cfg.LogLevel,
			Pretty:  cfg.LogPretty,
			Service: cfg.OTEL.ServiceName,
			Version: version,
		})
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(userCmd())
}

// openDB opens the configured database with query tracing enabled.
func openDB() (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	if err := observability.InstrumentGorm(db); err != nil {
		return nil, fmt.Errorf("instrument gorm: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withDB opens the database, runs fn and closes it.
func withDB(fn func(db *gorm.DB) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)
	return fn(db)
}

// resolveActor loads the person a maintenance command acts as.
func resolveActor(ctx context.Context, db *gorm.DB, personID uint) (domain.Actor, error) {
	if personID == 0 {
		return domain.Actor{}, errors.New("--as is required")
	}
	a, err := (&services.ActorService{DB: db}).Resolve(ctx, personID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("resolve person %d: %w", personID, err)
	}
	return a, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *gorm.DB) error {
				if err := repo.AutoMigrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				log.Info().Str("driver", cfg.DBDriver).Int("models", len(repo.Models())).Msg("schema up to date")
				return nil
			})
		},
	}
}

func purgeCmd() *cobra.Command {
	var (
		as  uint
		ids []uint
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently remove archived or deleted commitments",
		Long:  "Purge removes the given archived or deleted commitments with their referents, verifiers and meeting links. Only the service director may purge.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return errors.New("--ids is required")
			}
			return withDB(func(db *gorm.DB) error {
				ctx := cmd.Context()
				a, err := resolveActor(ctx, db, as)
				if err != nil {
					return err
				}
				n, err := (&services.LifecycleService{DB: db}).BulkPurge(ctx, a, ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d of %d commitments\n", n, len(ids))
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&as, "as", 0, "person id performing the purge")
	cmd.Flags().UintSliceVar(&ids, "ids", nil, "commitment ids (comma separated)")
	return cmd
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage login credentials"}
	var (
		username, password string
		person             uint
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a login bound to a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SGC_PASSWORD")
			}
			return withDB(func(db *gorm.DB) error {
				u, err := (&services.AuthService{DB: db}).CreateUser(cmd.Context(), username, password, person)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %q created for person %d\n", u.Username, u.PersonID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&password, "password", "", "password (defaults to $SGC_PASSWORD)")
	create.Flags().UintVar(&person, "person", 0, "person id")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("person")
	usr.AddCommand(create)
	return usr
}
