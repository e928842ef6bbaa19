// Package notifx is the outbound notification boundary. Callers inside the
// authorization engine treat every send as fire-and-forget: a failed
// notification is logged by the caller and never fails the request.
package notifx

import (
	"context"
	"net/http"

	"github.com/vantak/gatehouse/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("NOTIFX")

var (
	CodeInvalidMessage = ErrRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "Invalid notification message")
	CodeSendFailed     = ErrRegistry.Register("SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "Notification send failed")
	CodeUnknownTemplate = ErrRegistry.Register("UNKNOWN_TEMPLATE", errx.TypeNotFound, http.StatusNotFound, "Unknown notification template")
)

// EmailMessage is a single outbound email.
type EmailMessage struct {
	From     string
	To       []string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// Client is the entry point for sending notifications.
type Client struct {
	provider  EmailSender
	templates *TemplateRegistry
}

// NewClient creates a notification client over the given provider.
func NewClient(provider EmailSender) *Client {
	return &Client{provider: provider, templates: NewTemplateRegistry()}
}

// SendEmail sends an email through the configured provider.
func (c *Client) SendEmail(ctx context.Context, msg EmailMessage) error {
	if len(msg.To) == 0 {
		return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", "no recipients")
	}
	if msg.Subject == "" {
		return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", "empty subject")
	}
	return c.provider.SendEmail(ctx, msg)
}

// RegisterTemplate parses and stores a named template for later use.
func (c *Client) RegisterTemplate(name, tmpl string) error {
	return c.templates.Register(name, tmpl)
}

// SendTemplatedEmail renders a template into the HTML body and sends it.
func (c *Client) SendTemplatedEmail(ctx context.Context, templateName string, data interface{}, msg EmailMessage) error {
	body, err := c.templates.Render(templateName, data)
	if err != nil {
		return err
	}
	msg.HTMLBody = body
	return c.SendEmail(ctx, msg)
}
