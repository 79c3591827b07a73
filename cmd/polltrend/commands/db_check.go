package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/internal/store"
	"github.com/wonny/polltrend/pkg/database"
)

// dbCheckCmd represents the db-check command
var dbCheckCmd = &cobra.Command{
	Use:   "db-check",
	Short: "Test the PostgreSQL connection",
	Long: `Connects to DATABASE_URL, creates the run tables if missing, and
prints pool statistics and the most recent runs.

Example:
  go run ./cmd/polltrend db-check`,
	RunE: runDBCheck,
}

func init() {
	rootCmd.AddCommand(dbCheckCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}
	fmt.Printf("   Response Time: %v\n\n", status.ResponseTime)

	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max Connections", fmt.Sprintf("%d", db.Pool.Stat().MaxConns()), 20)
	PrintKeyValue("Total Connections", fmt.Sprintf("%d", status.TotalConns), 20)
	PrintKeyValue("Idle Connections", fmt.Sprintf("%d", status.IdleConns), 20)
	fmt.Println()

	pg := store.NewPostgresStore(db.Pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("❌ Schema check failed: %w", err)
	}
	fmt.Println("✅ Schema ready")

	runs, err := pg.ListRuns(ctx, 5)
	if err != nil {
		return fmt.Errorf("❌ Failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		PrintInfo("No runs saved yet")
		return nil
	}

	fmt.Println("\nRecent runs:")
	widths := []int{36, 20, 14, 10}
	PrintTableHeader([]string{"ID", "Finished", "Leader", "Warnings"}, widths)
	for _, r := range runs {
		PrintTableRow([]string{
			r.ID,
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.Leader,
			fmt.Sprintf("%d", r.Warnings),
		}, widths)
	}
	return nil
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
