package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Settlement is the data rendered into a settlement email.
type Settlement struct {
	PropertyTitle string
	Step          int
	Amount        string
	Shares        int64
	Branch        string
}

// Sender sends settlement emails (accepted, refunded, finalized).
type Sender interface {
	SendApplicationAccepted(ctx context.Context, toEmail, name string, s Settlement) error
	SendApplicationRejected(ctx context.Context, toEmail, name string, s Settlement) error
	SendPropertyFinalized(ctx context.Context, toEmail, name string, s Settlement) error
}

// BrevoClient sends emails via Brevo (Sendinblue) API. Env: SENDINBLUE_API_KEY, MAIL_FROM.
// An empty APIKey turns every send into a no-op.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	BaseURL  string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@brickshare.io"
}

func (c *BrevoClient) endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return brevoAPI
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, name, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "Brickshare"},
		To:          []BrevoTo{{Email: toEmail, Name: name}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoReplyTo{Email: "support@brickshare.io", Name: "Brickshare Support"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *BrevoClient) SendApplicationAccepted(ctx context.Context, toEmail, name string, s Settlement) error {
	subject := fmt.Sprintf("Your application for %s was accepted", s.PropertyTitle)
	return c.send(ctx, toEmail, name, subject, EmailLayout(acceptedContent(name, s)))
}

func (c *BrevoClient) SendApplicationRejected(ctx context.Context, toEmail, name string, s Settlement) error {
	subject := fmt.Sprintf("Funding round for %s closed, funds returned", s.PropertyTitle)
	return c.send(ctx, toEmail, name, subject, EmailLayout(rejectedContent(name, s)))
}

func (c *BrevoClient) SendPropertyFinalized(ctx context.Context, toEmail, name string, s Settlement) error {
	subject := fmt.Sprintf("%s is fully allocated", s.PropertyTitle)
	return c.send(ctx, toEmail, name, subject, EmailLayout(finalizedContent(name, s)))
}

func greeting(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func acceptedContent(name string, s Settlement) string {
	return fmt.Sprintf(`
    <h1>Welcome aboard, %s!</h1>
    <p>The funding round %d of <strong>%s</strong> reached its target and your application was accepted.</p>
    <p>You now hold <strong>%d shares</strong> for a committed amount of <strong>%s</strong>.</p>
    <p>The Brickshare Team</p>
`, EscapeHTML(greeting(name)), s.Step, EscapeHTML(s.PropertyTitle), s.Shares, EscapeHTML(s.Amount))
}

func rejectedContent(name string, s Settlement) string {
	return fmt.Sprintf(`
    <h1>Hi %s,</h1>
    <p>Funding round %d of <strong>%s</strong> did not reach its target by the due date.</p>
    <p>Your commitment of <strong>%s</strong> has been returned to your wallet.</p>
    <p>The Brickshare Team</p>
`, EscapeHTML(greeting(name)), s.Step, EscapeHTML(s.PropertyTitle), EscapeHTML(s.Amount))
}

func finalizedContent(name string, s Settlement) string {
	return fmt.Sprintf(`
    <h1>Hi %s,</h1>
    <p>The application period for <strong>%s</strong> has ended and ownership is now final.</p>
    <p>Your updated holding is visible in your portfolio.</p>
    <p>The Brickshare Team</p>
`, EscapeHTML(greeting(name)), EscapeHTML(s.PropertyTitle))
}
