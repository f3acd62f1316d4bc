package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Mail is an outgoing HTML notification message.
type Mail struct {
	Subject    string
	HTMLBody   string
	Recipients []string
}

type sendMailRequest struct {
	Message mailMessage `json:"message"`
}

type mailMessage struct {
	Subject      string          `json:"subject"`
	Body         mailBody        `json:"body"`
	ToRecipients []mailRecipient `json:"toRecipients"`
}

type mailBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type mailRecipient struct {
	EmailAddress mailAddress `json:"emailAddress"`
}

type mailAddress struct {
	Address string `json:"address"`
}

// SendMail sends an HTML message from the given sender mailbox.
// The API answers 202 Accepted on success.
func (c *Client) SendMail(ctx context.Context, sender string, mail Mail) error {
	if sender == "" {
		return fmt.Errorf("graph: sender address is required")
	}

	if len(mail.Recipients) == 0 {
		return fmt.Errorf("graph: at least one recipient is required")
	}

	c.logger.Info("sending notification mail",
		slog.String("sender", sender),
		slog.Int("recipients", len(mail.Recipients)),
	)

	req := sendMailRequest{
		Message: mailMessage{
			Subject: mail.Subject,
			Body:    mailBody{ContentType: "HTML", Content: mail.HTMLBody},
		},
	}

	for _, addr := range mail.Recipients {
		req.Message.ToRecipients = append(req.Message.ToRecipients, mailRecipient{
			EmailAddress: mailAddress{Address: addr},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("graph: marshaling mail request: %w", err)
	}

	path := fmt.Sprintf("/users/%s/sendMail", sender)

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("graph: draining sendMail response: %w", copyErr)
	}

	return nil
}
