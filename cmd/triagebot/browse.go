package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"triagebot/internal/config"
	"triagebot/internal/domain"
	"triagebot/internal/storage/sqlite"
)

func ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tickets", Short: "Manage tickets"}
	cmd.AddCommand(ticketsListCmd())
	cmd.AddCommand(ticketsAddCmd())
	cmd.AddCommand(ticketsShowCmd())
	cmd.AddCommand(ticketsRmCmd())
	return cmd
}

func ticketsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg config.Config, db *sql.DB) error {
				tickets, err := (&sqlite.TicketStore{DB: db}).ListAll(cmd.Context())
				if err != nil {
					return err
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Title", "Status", "Tags", "Created"})
				for _, tk := range tickets {
					t.AppendRow(table.Row{tk.ID, truncate(tk.Title, 50), tk.Status, tk.Tags, tk.CreatedAt.Format("2006-01-02")})
				}
				t.Render()
				return nil
			})
		},
	}
}

func ticketsAddCmd() *cobra.Command {
	var status, tags string
	cmd := &cobra.Command{
		Use:   "add <title> <description>",
		Short: "Add a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidTicketStatus(status) {
				return fmt.Errorf("invalid status %q (open, in_progress, resolved, closed)", status)
			}
			return withDB(func(cfg config.Config, db *sql.DB) error {
				id, err := (&sqlite.TicketStore{DB: db}).Insert(cmd.Context(), domain.Ticket{
					Title:       args[0],
					Description: args[1],
					Status:      status,
					Tags:        tags,
				})
				if err != nil {
					return err
				}
				fmt.Printf("ticket %d created\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", domain.TicketOpen, "ticket status")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	return cmd
}

func ticketsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			return withDB(func(cfg config.Config, db *sql.DB) error {
				tk, err := (&sqlite.TicketStore{DB: db}).Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Printf("#%d %s [%s]\n", tk.ID, tk.Title, tk.Status)
				if tk.Tags != "" {
					fmt.Printf("tags: %s\n", tk.Tags)
				}
				fmt.Println(tk.Description)
				return nil
			})
		},
	}
}

func ticketsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}
			return withDB(func(cfg config.Config, db *sql.DB) error {
				return (&sqlite.TicketStore{DB: db}).Delete(cmd.Context(), id)
			})
		},
	}
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "Browse analysis runs"}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg config.Config, db *sql.DB) error {
				runs, err := (&sqlite.RunStore{DB: db}).ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Created", "Status", "Tokens", "Cost", "Summary"})
				for _, r := range runs {
					tokens, cost := "-", "-"
					if r.TotalTokens != nil {
						tokens = strconv.FormatInt(*r.TotalTokens, 10)
					}
					if r.TotalCost != nil {
						cost = fmt.Sprintf("$%.4f", *r.TotalCost)
					}
					t.AppendRow(table.Row{r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, tokens, cost, truncate(r.Summary, 60)})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max runs to list")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run and its analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return withDB(func(cfg config.Config, db *sql.DB) error {
				store := &sqlite.RunStore{DB: db}
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Printf("run %d [%s] %s\n", run.ID, run.Status, run.CreatedAt.Format("2006-01-02 15:04"))
				fmt.Println(run.Summary)
				if run.TotalTokens != nil && run.TotalCost != nil {
					fmt.Printf("tokens: %d, cost: $%.4f\n", *run.TotalTokens, *run.TotalCost)
				}

				analyses, err := store.AnalysesForRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(analyses) == 0 {
					return nil
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Ticket", "Category", "Priority", "Confidence", "Analysis"})
				for _, a := range analyses {
					t.AppendRow(table.Row{a.TicketID, a.Category, a.Priority, fmt.Sprintf("%.2f", a.Confidence), truncate(a.Analysis, 60)})
				}
				t.Render()
				return nil
			})
		},
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
