package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"triagebot/internal/domain"
	"triagebot/internal/pipeline"
)

// Notifier posts run summaries to a Slack channel. A nil Notifier is
// valid and does nothing, so callers never need to branch on config.
type Notifier struct {
	api       *slack.Client
	channelID string
}

func New(botToken, channelID string) *Notifier {
	if botToken == "" || channelID == "" {
		return nil
	}
	return &Notifier{api: slack.New(botToken), channelID: channelID}
}

func (n *Notifier) RunFinished(run domain.AnalysisRun, summary pipeline.Summary) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("Analysis run %d %s: %s", run.ID, run.Status, run.Summary)
	if summary.TotalTokens > 0 {
		text += fmt.Sprintf(" [tokens=%d cost=$%.4f]", summary.TotalTokens, summary.TotalCost)
	}
	if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("notify slack post error: %v", err)
	}
}

func (n *Notifier) RunFailed(runID int64, err error) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("Analysis run failed (run %d): %v", runID, err)
	if runID == 0 {
		text = fmt.Sprintf("Analysis invocation failed before a run was created: %v", err)
	}
	if _, _, postErr := n.api.PostMessage(n.channelID, slack.MsgOptionText(text, false)); postErr != nil {
		log.Printf("notify slack post error: %v", postErr)
	}
}
