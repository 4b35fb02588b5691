package services

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/models"
)

// Mailer sends transactional mail over SMTP. Delivery is best effort:
// failures are logged and never surfaced to the request that triggered them.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.EmailFrom,
	}
}

// SendWelcomeEmail mails a new patient their login credentials and QR code.
// Call it in a goroutine so it doesn't block the API response.
func (m *Mailer) SendWelcomeEmail(user *models.User, password, qrBase64 string) {
	if m.host == "" {
		log.Printf("Email not sent to %s: SMTP is not configured", user.Email)
		return
	}

	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your patient account has been created.</p>
		<p><strong>Email:</strong> %s<br/>
		<strong>Password:</strong> %s</p>
		<p>Present the QR code below at reception to identify yourself:</p>
		<img src="data:image/png;base64,%s" alt="Patient QR code"/>
		<p>Please change your password after your first login.</p>
	`, user.Name, user.Email, password, qrBase64)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", user.Email)
	msg.SetHeader("Subject", "Welcome to Clinovia")
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := d.DialAndSend(msg); err != nil {
		log.Printf("Failed to send welcome email to %s: %v", user.Email, err)
		return
	}
	log.Printf("Sent welcome email to %s", user.Email)
}
