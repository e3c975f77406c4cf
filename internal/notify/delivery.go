package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Email is the rendered message handed to a delivery strategy.
type Email struct {
	To          string
	Subject     string
	Code        string
	HTMLContent string
	TextContent string
}

// Deliverer is one delivery strategy. Strategies are tried in order; the
// first success wins.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, email Email) error
}

// HTTPDeliverer posts the email to an external send endpoint.
type HTTPDeliverer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDeliverer builds the HTTP strategy with a bounded request timeout.
func NewHTTPDeliverer(endpoint string, client *http.Client) *HTTPDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDeliverer{endpoint: endpoint, client: client}
}

// Name identifies the strategy in logs and metrics.
func (d *HTTPDeliverer) Name() string { return "http" }

type sendEmailRequest struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}

// Deliver posts the message. Any non-2xx response, timeout, or connection
// failure is an error so the consumer can fall back.
func (d *HTTPDeliverer) Deliver(ctx context.Context, email Email) error {
	body, err := json.Marshal(sendEmailRequest{
		To:          email.To,
		Subject:     email.Subject,
		HTMLContent: email.HTMLContent,
		TextContent: email.TextContent,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: email endpoint: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify: email endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// ConsoleDeliverer writes the code to a local stream so it is never silently
// lost in development or when the HTTP endpoint is degraded.
type ConsoleDeliverer struct {
	out io.Writer
}

// NewConsoleDeliverer builds the console strategy; nil defaults to stdout.
func NewConsoleDeliverer(out io.Writer) *ConsoleDeliverer {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleDeliverer{out: out}
}

// Name identifies the strategy in logs and metrics.
func (d *ConsoleDeliverer) Name() string { return "console" }

// Deliver prints the activation code block.
func (d *ConsoleDeliverer) Deliver(_ context.Context, email Email) error {
	_, err := fmt.Fprintf(d.out,
		"\n============================================================\n"+
			"EMAIL NOTIFICATION (Console Mode)\n"+
			"============================================================\n"+
			"To: %s\nSubject: %s\n\nYour activation code is: %s\n"+
			"This code will expire in 1 minute.\n"+
			"============================================================\n",
		email.To, email.Subject, email.Code)
	return err
}

// RenderActivationEmail produces the HTML and text bodies for a code.
func RenderActivationEmail(code string) (html, text string) {
	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Welcome!</h1>
  <p>Please use the following activation code to complete your registration:</p>
  <div style="font-size: 36px; font-weight: bold; letter-spacing: 8px;">%s</div>
  <p>This code will expire in 1 minute for security reasons.</p>
  <p>If you didn't request this code, please ignore this email.</p>
</body>
</html>`, code)
	text = fmt.Sprintf(`Welcome!

Please use the following activation code to complete your registration:

%s

This code will expire in 1 minute for security reasons.

If you didn't request this code, please ignore this email.`, code)
	return html, text
}
