package sync

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/brideal/dealsync/internal/graph"
)

// MailNotifier emails the configured recipients when every strategy failed,
// pointing them at the local backup so the rows can be re-pushed later.
type MailNotifier struct {
	client     *graph.Client
	sender     string
	recipients []string
}

// NewMailNotifier creates a Notifier sending through the graph mail API.
func NewMailNotifier(client *graph.Client, sender string, recipients []string) *MailNotifier {
	return &MailNotifier{client: client, sender: sender, recipients: recipients}
}

// NotifyFailure sends the failure notice.
func (n *MailNotifier) NotifyFailure(ctx context.Context, backupPath string, rowCount int, attempts []AttemptResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>A sync of %d row(s) could not reach the shared spreadsheet. ", rowCount)
	fmt.Fprintf(&b, "The data is saved locally at <code>%s</code> and can be re-pushed.</p>", html.EscapeString(backupPath))
	b.WriteString("<ul>")
	for _, a := range attempts {
		msg := "ok"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		fmt.Fprintf(&b, "<li><b>%s</b>: %s</li>", html.EscapeString(a.Strategy), html.EscapeString(msg))
	}
	b.WriteString("</ul>")

	mail := graph.Mail{
		Subject:    "Spreadsheet sync failed",
		HTMLBody:   b.String(),
		Recipients: n.recipients,
	}

	return n.client.SendMail(ctx, n.sender, mail)
}
