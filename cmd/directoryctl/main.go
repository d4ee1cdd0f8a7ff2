// Command directoryctl runs one-off maintenance against the directory store:
// seeding fixtures and the admin operations an operator needs without a session.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"neighborhood_directory/internal/adapters/events"
	"neighborhood_directory/internal/adapters/observability"
	redisad "neighborhood_directory/internal/adapters/redis"
	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
	"neighborhood_directory/internal/shared"
	mysqlrepo "neighborhood_directory/internal/storage/mysql"
)

var (
	cfg     shared.Config
	repo    *mysqlrepo.Repo
	cache   domain.Cache
	admin   *app.AdminService
	timeout time.Duration
)

// operator is the caller recorded for CLI-driven admin actions.
var operator = domain.Session{UserID: "directoryctl", Role: domain.RoleAdmin, Name: "directoryctl"}

var rootCmd = &cobra.Command{
	Use:           "directoryctl",
	Short:         "Maintenance commands for the neighborhood directory",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = shared.Load()
		log.Logger = observability.NewLogger("directoryctl", cfg.AppEnv)

		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping mysql: %w", err)
		}
		repo = mysqlrepo.New(db)

		// evict through redis so a running API stops serving stale listings
		cache = redisad.NewCache(redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB))
		admin = app.NewAdminService(repo, repo, cache, events.Nop{})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "deadline for the whole command")
	rootCmd.AddCommand(seedCmd, featureCmd, unfeatureCmd, promoteCmd, disableCmd, enableCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
