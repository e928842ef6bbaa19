package notifxconsole

import (
	"context"
	"strings"

	"github.com/vantak/gatehouse/pkg/logx"
	"github.com/vantak/gatehouse/pkg/notifx"
)

// ConsoleProvider implements notifx.EmailSender by logging the message.
// Used in development and tests where no real mail provider is configured.
type ConsoleProvider struct{}

// NewConsoleProvider creates a console email provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// SendEmail logs the email instead of sending it.
func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	logx.WithFields(logx.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Info("notifx: console email")
	return nil
}
