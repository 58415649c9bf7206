// utils/alert.go
package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// MailAlerter emails operational alerts to the ops address. Sending is
// best-effort: a mail failure is logged, never propagated, because alerts
// must not block the money path that raised them.
type MailAlerter struct {
	host string
	port int
	user string
	pass string
	to   string
}

// NewMailAlerter reads SMTP settings from the environment. Returns nil when
// SMTP_HOST or ALERT_EMAIL is unset, in which case email alerting is disabled.
func NewMailAlerter() *MailAlerter {
	host := os.Getenv("SMTP_HOST")
	to := os.Getenv("ALERT_EMAIL")
	if host == "" || to == "" {
		log.Println("Warning: SMTP_HOST/ALERT_EMAIL not set, email alerts disabled")
		return nil
	}

	port := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &port)
	}

	return &MailAlerter{
		host: host,
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		to:   to,
	}
}

// Alert sends the alert by email.
func (a *MailAlerter) Alert(alert models.OpsAlert) {
	if a == nil {
		return
	}

	body := alert.Message
	if alert.Data != nil {
		if data, err := json.MarshalIndent(alert.Data, "", "  "); err == nil {
			body = body + "\n\n" + string(data)
		}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", a.user)
	m.SetHeader("To", a.to)
	m.SetHeader("Subject", fmt.Sprintf("[traderefer] %s", alert.Kind))
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(a.host, a.port, a.user, a.pass)
	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send alert email (%s): %v", alert.Kind, err)
	}
}
