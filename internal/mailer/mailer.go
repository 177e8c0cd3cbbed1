// Package mailer sends verification emails through the Brevo HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// Provider sends an HTML email.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Brevo sends emails via the Brevo (formerly Sendinblue) API.
type Brevo struct {
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
	log      *zap.Logger
}

func NewBrevo(apiKey, fromAddr, fromName string, log *zap.Logger) *Brevo {
	return &Brevo{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

type sendRequest struct {
	Sender  contact   `json:"sender"`
	To      []contact `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"htmlContent"`
}

type contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (b *Brevo) Send(ctx context.Context, to, subject, htmlBody string) error {
	reqBody := sendRequest{
		Sender:  contact{Email: b.fromAddr, Name: b.fromName},
		To:      []contact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				"https://api.brevo.com/v3/smtp/email", bytes.NewReader(jsonData))
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api-key", b.apiKey)

			resp, err := b.client.Do(req)
			if err != nil {
				b.log.Warn("mail send failed, will retry", zap.String("to", to), zap.Error(err))
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				b.log.Warn("mail API returned non-2xx, will retry",
					zap.Int("status", resp.StatusCode), zap.String("to", to))
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			b.log.Info("verification email sent", zap.String("to", to))
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.log.Info("retrying email send", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
}

// Verification email body. The code is rendered in two 4-digit groups.
var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 24px;">
    <div style="max-width: 480px; margin: auto; background: #ffffff; border-radius: 8px; padding: 32px;">
      <h2 style="color: #222;">Verify your email</h2>
      <p>Someone (hopefully you) asked to link this email address to a Discord account
         on the club server. Send the bot the code below to finish linking.</p>
      <p style="font-size: 32px; letter-spacing: 4px; font-weight: bold; text-align: center; color: #b8860b;">
        {{.Code}}
      </p>
      <p style="color: #666; font-size: 12px;">The code expires in one hour. If you did not
         request this, you can ignore this email.</p>
    </div>
  </body>
</html>
`))

// VerificationBody renders the HTML body carrying a formatted one-time code.
func VerificationBody(code string) (string, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, struct{ Code string }{Code: code}); err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}
