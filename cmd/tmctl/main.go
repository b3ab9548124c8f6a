// main.go - Admin control tool for TopicMingle
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"topicmingle/internal"
	"topicmingle/internal/dashboard"
	"topicmingle/internal/seeder"
	"topicmingle/internal/tracking"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	minTokenLength         = 16
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tmctl",
		Short:         "Admin control tool for TopicMingle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newReportCommand(),
		newHashTokenCommand(),
		newStatusCommand(),
	)
	return root
}

// withApp builds the application, runs fn and shuts the application down.
func withApp(fn func(ctx context.Context, app *internal.Application) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		app, err := internal.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
		return fn(cmd.Context(), app)
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Runs database migrations",
		RunE: withApp(func(_ context.Context, app *internal.Application) error {
			log.Println("Running database migrations...")
			if err := app.DBManager.MigrateDatabase(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Println("Migrations completed successfully")
			return nil
		}),
	}
}

func newSeedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seeds the main store from a YAML fixture file",
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the fixture file")
	cmd.MarkFlagRequired("file")

	cmd.RunE = withApp(func(ctx context.Context, app *internal.Application) error {
		fx, err := seeder.LoadFile(file)
		if err != nil {
			return err
		}
		if err := app.DBManager.MigrateDatabase(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		counts, err := seeder.NewSeeder(app.DBManager, app.Logger).Run(ctx, fx)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d catalog rows, %d sessions, %d page views, %d clicks, %d email captures\n",
			counts.Catalog, counts.Sessions, counts.PageViews, counts.Clicks, counts.EmailCaptures)
		return nil
	})
	return cmd
}

func newReportCommand() *cobra.Command {
	var site, period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Builds a fresh report and prints it as JSON",
	}
	cmd.Flags().StringVar(&site, "site", dashboard.SiteAll, "project id or all")
	cmd.Flags().StringVar(&period, "period", "all", "all, today, week or month")

	cmd.RunE = withApp(func(ctx context.Context, app *internal.Application) error {
		svc := app.Services
		view, err := dashboard.ParseView(site, period, svc.ProjectIDs)
		if err != nil {
			return err
		}

		report, err := svc.Refresher.Refresh(ctx)
		if err != nil && !errors.Is(err, dashboard.ErrStaleGeneration) {
			return err
		}
		for _, w := range report.Warnings {
			log.Printf("Warning: %s: %s", w.Project, w.Message)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dashboard.Filter(report, view, time.Now()))
	})
	return cmd
}

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token",
		Short: "Hashes an admin token for TOPICMINGLE_ADMIN_TOKEN_HASH",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken()
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

func readToken() (string, error) {
	fmt.Fprintf(os.Stderr, "Enter admin token (minimum %d characters): ", minTokenLength)
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(first))
	if len(token) < minTokenLength {
		return "", fmt.Errorf("token must be at least %d characters", minTokenLength)
	}

	fmt.Fprint(os.Stderr, "Confirm admin token: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if token != strings.TrimSpace(string(second)) {
		return "", errors.New("tokens do not match")
	}
	return token, nil
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows the current system status",
		RunE: withApp(func(ctx context.Context, app *internal.Application) error {
			db := app.DBManager.GetConnection()

			totals, err := tracking.GetTotals(db)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}

			log.Println("System Status:")
			log.Println("- Database: Connected")
			log.Printf("- Sessions: %d", totals.Sessions)
			log.Printf("- Page views: %d", totals.PageViews)
			log.Printf("- Clicks: %d", totals.Clicks)
			log.Printf("- Projects: %s", strings.Join(app.Services.ProjectIDs, ", "))

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			for name, dep := range app.Services.Pingers {
				status := "ok"
				if err := dep.Ping(pingCtx); err != nil {
					status = err.Error()
				}
				log.Printf("- %s: %s", name, status)
			}

			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get SQL DB: %w", err)
			}
			log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
			log.Printf("- In Use: %d", sqlDB.Stats().InUse)
			log.Printf("- Idle: %d", sqlDB.Stats().Idle)
			return nil
		}),
	}
}
