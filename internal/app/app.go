package app

import (
	"database/sql"
	"fmt"
	"log"

	"triagebot/internal/config"
	"triagebot/internal/llm"
	"triagebot/internal/notify"
	"triagebot/internal/pipeline"
	"triagebot/internal/schedule"
	"triagebot/internal/storage/sqlite"
)

// BuildOrchestrator wires the pipeline against the SQLite stores and the
// configured LLM provider.
func BuildOrchestrator(cfg config.Config, db *sql.DB) (*pipeline.Orchestrator, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &pipeline.Orchestrator{
		Tickets:    &sqlite.TicketStore{DB: db},
		Runs:       &sqlite.RunStore{DB: db},
		Classifier: client,
		Pool: pipeline.Pool{
			Workers:     cfg.WorkerCount,
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
		},
		Deadline: cfg.RunDeadline(),
	}, nil
}

// Serve runs the scheduler daemon: periodic auto-analysis plus Slack
// notification of run outcomes.
func Serve(cfg config.Config, db *sql.DB) error {
	orch, err := BuildOrchestrator(cfg, db)
	if err != nil {
		return err
	}

	notifier := notify.New(cfg.SlackBotToken, cfg.NotifyChannelID)
	if !schedule.StartAutoAnalyze(cfg.AutoAnalyzeSchedule, orch, notifier) {
		return fmt.Errorf("auto_analyze_schedule must be set to run serve")
	}

	log.Printf("triagebot serving: workers=%d max_attempts=%d provider=%s model=%s",
		cfg.WorkerCount, cfg.MaxAttempts, cfg.LLMProvider, cfg.LLMModel)
	select {} // scheduler goroutine does the work
}
