package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"triagebot/internal/app"
	"triagebot/internal/config"
	"triagebot/internal/storage/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "triagebot",
	Short: "Support ticket analysis pipeline",
	Long: `Triagebot classifies support tickets with an LLM and records the
results as analysis runs: per-ticket category/priority verdicts plus a
run-level summary with token and cost accounting.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default config.yaml or $CONFIG_PATH)")
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ticketsCmd())
	rootCmd.AddCommand(runsCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDB loads config, opens the database, and hands both to fn.
func withDB(fn func(cfg config.Config, db *sql.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()
	return fn(cfg, db)
}

func analyzeCmd() *cobra.Command {
	var deadline time.Duration
	cmd := &cobra.Command{
		Use:   "analyze [ticket-id...]",
		Short: "Run the analysis pipeline",
		Long: `Runs one analysis pipeline invocation. With no arguments every ticket
is analyzed; with ticket ids only those tickets are. Unknown ids fail
the invocation before a run is created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []int64
			if len(args) > 0 {
				ids = make([]int64, 0, len(args))
				for _, arg := range args {
					id, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid ticket id %q", arg)
					}
					ids = append(ids, id)
				}
			}
			return withDB(func(cfg config.Config, db *sql.DB) error {
				orch, err := app.BuildOrchestrator(cfg, db)
				if err != nil {
					return err
				}
				if deadline > 0 {
					orch.Deadline = deadline
				}
				result, err := orch.Execute(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Printf("run %d %s\n", result.Run.ID, result.Run.Status)
				fmt.Println(result.Run.Summary)
				fmt.Printf("analyses: %d, tokens: %d, cost: $%.4f\n",
					len(result.Analyses), result.Summary.TotalTokens, result.Summary.TotalCost)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "overall deadline for the invocation (e.g. 2m)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed sample tickets into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg config.Config, db *sql.DB) error {
				n, err := sqlite.SeedTickets(cmd.Context(), &sqlite.TicketStore{DB: db})
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Println("tickets already present, nothing seeded")
				} else {
					fmt.Printf("seeded %d tickets\n", n)
				}
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auto-analyze scheduler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(app.Serve)
		},
	}
}
