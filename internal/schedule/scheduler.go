package schedule

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"triagebot/internal/notify"
	"triagebot/internal/pipeline"
)

// StartAutoAnalyze starts a cron-based scheduler that periodically runs
// the analysis pipeline over all tickets and posts the outcome.
// The schedule is a standard 5-field cron expression (minute hour
// day-of-month month day-of-week). Examples: "0 9 * * *" (daily 9am),
// "0 9 * * 1-5" (weekdays 9am).
func StartAutoAnalyze(scheduleExpr string, orch *pipeline.Orchestrator, notifier *notify.Notifier) bool {
	scheduleExpr = strings.TrimSpace(scheduleExpr)
	if scheduleExpr == "" {
		log.Println("Auto-analyze disabled (auto_analyze_schedule not set)")
		return false
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(scheduleExpr)
	if err != nil {
		log.Printf("Invalid auto_analyze_schedule '%s': %v — auto-analyze disabled", scheduleExpr, err)
		return false
	}

	log.Printf("Auto-analyze scheduled (cron: %s)", scheduleExpr)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-analyze at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, err := orch.Execute(context.Background(), nil)
			if err != nil {
				log.Printf("Auto-analyze error: %v", err)
				var runErr *pipeline.RunError
				if errors.As(err, &runErr) {
					notifier.RunFailed(runErr.RunID, err)
				} else {
					notifier.RunFailed(0, err)
				}
				continue
			}
			log.Printf("Auto-analyze complete: run=%d analyses=%d", result.Run.ID, len(result.Analyses))
			notifier.RunFinished(result.Run, result.Summary)
		}
	}()
	return true
}
