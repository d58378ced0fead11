package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	return &MailerSendClient{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSendClient) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	subject := "Verify your Scorefluence pre-registration"

	greeting := "Hi,"
	if toName != "" {
		greeting = fmt.Sprintf("Hi %s,", toName)
	}

	html := fmt.Sprintf(`
		<h2>Welcome to Scorefluence!</h2>
		<p>%s</p>
		<p>You're one step away from early access. Please verify your email address by clicking the link below:</p>
		<p><a href="%s" style="background-color: #4A90E2; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a></p>
		<p>This link will expire in 24 hours.</p>
		<p>If you didn't sign up, you can safely ignore this email.</p>
	`, greeting, verifyURL)

	text := fmt.Sprintf("%s\n\nPlease verify your email by clicking this link: %s\n\nThis link will expire in 24 hours.", greeting, verifyURL)

	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) send(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
