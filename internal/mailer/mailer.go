// Package mailer delivers verification emails. The production
// implementation goes through MailerSend; without an API key the dev mailer
// logs the would-be send instead, so a missing provider never blocks
// registration.
package mailer

import (
	"fmt"
	"net/url"

	"github.com/scorefluence/prelaunch/pkg/config"
)

type Service interface {
	SendVerificationEmail(toEmail, toName, verifyURL, token string) error
}

// New picks the implementation from configuration.
func New(cfg *config.Config) Service {
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		return NewDevMailer()
	}
	return NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
}

// VerificationURL builds the link embedded in the email.
func VerificationURL(baseURL, token string) string {
	return fmt.Sprintf("%s/verify?token=%s", baseURL, url.QueryEscape(token))
}
