package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// MessageSender is the subset of MessageAPI the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// RunNotifier implements port.Notifier by posting a text summary to a chat
type RunNotifier struct {
	sender MessageSender
	chatID string
	logger *zap.Logger
}

// NewRunNotifier creates a notifier posting to chatID
func NewRunNotifier(sender MessageSender, chatID string, logger *zap.Logger) *RunNotifier {
	return &RunNotifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// NotifyRun sends the run summary. Runs with nothing to report are not announced.
func (n *RunNotifier) NotifyRun(ctx context.Context, run *entity.ScanRun, summary *entity.ProcessingSummary) error {
	if n.chatID == "" {
		return nil
	}
	if run.Status == entity.RunStatusCompleted && summary != nil && summary.Total() == 0 {
		n.logger.Debug("Skipping notification for empty run", zap.String("run_id", run.ID))
		return nil
	}

	content, err := json.Marshal(map[string]string{"text": FormatRunSummary(run, summary)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	if _, err := n.sender.SendMessage(ctx, ReceiveIDChat, n.chatID, "text", string(content)); err != nil {
		return fmt.Errorf("failed to notify run %s: %w", run.ID, err)
	}
	return nil
}

// FormatRunSummary renders the plain-text body of a run notification
func FormatRunSummary(run *entity.ScanRun, summary *entity.ProcessingSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Invoice intake %s (%s, run %s)\n", strings.ToLower(run.Status), strings.ToLower(run.Trigger), run.ID)
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	if summary == nil {
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "Processed: %d, skipped: %d, errors: %d\n",
		len(summary.Processed), len(summary.Skipped), len(summary.Errors))

	for _, r := range summary.Processed {
		line := fmt.Sprintf("+ %s %s -> %s", r.InvoiceNumber, r.Supplier, r.ArchivePath)
		if r.LedgerError != "" {
			line += " (ledger not updated)"
		}
		b.WriteString(line + "\n")
	}
	for _, r := range summary.Errors {
		name := r.Filename
		if name == "" {
			name = r.MessageID
		}
		fmt.Fprintf(&b, "! %s: %s\n", name, r.Error)
	}

	return strings.TrimRight(b.String(), "\n")
}
