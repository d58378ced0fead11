package mailer

import (
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// DevMailer logs verification emails instead of sending them. Used whenever
// no provider key is configured.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	logger.Info("[DEV MAIL] verification email",
		"to", toEmail,
		"name", toName,
		"verify_url", verifyURL,
		"token", token,
	)
	return nil
}
