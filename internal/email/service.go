package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service handles email sending operations
type Service struct {
	config SMTPConfig
	logger zerolog.Logger
}

// NewService creates a new email service
func NewService(config SMTPConfig, logger zerolog.Logger) *Service {
	if config.FromName == "" {
		config.FromName = "SnappyTools"
	}
	return &Service{
		config: config,
		logger: logger.With().Str("component", "email").Logger(),
	}
}

// IsConfigured reports whether the service has enough settings to send
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" &&
		s.config.Username != "" && s.config.Password != "" && s.config.From != ""
}

// SendEmail sends a single HTML email
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	message := []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n",
	)

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := s.config.Host + ":" + s.config.Port

	s.logger.Info().Str("to", to).Str("host", s.config.Host).Str("port", s.config.Port).Msg("Sending email")

	var err error
	// Port 465 speaks TLS from the first byte; 587/25 use STARTTLS.
	if s.config.Port == "465" {
		err = s.sendEmailTLS(addr, auth, s.config.From, []string{to}, message)
	} else {
		err = smtp.SendMail(addr, auth, s.config.From, []string{to}, message)
	}

	if err != nil {
		s.logger.Error().Err(err).Str("to", to).Msg("Failed to send email")
		return fmt.Errorf("SMTP error: %w", err)
	}

	s.logger.Info().Str("to", to).Msg("Email sent")
	return nil
}

// sendEmailTLS sends email using an implicit-TLS connection (port 465)
func (s *Service) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host := strings.Split(addr, ":")[0]
	tlsConfig := &tls.Config{
		ServerName: host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to add recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// SendLicenseEmail delivers the activation email carrying the real
// license key. This is the single disclosure path for the key.
func (s *Service) SendLicenseEmail(ctx context.Context, toEmail, toName, licenseKey, plan string, expiresAt time.Time) error {
	subject := "Your SnappyTools License Key"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #059669; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 5px 5px; }
        .key { font-size: 24px; font-weight: bold; letter-spacing: 2px; color: #059669; text-align: center; margin: 30px 0; padding: 20px; background-color: white; border-radius: 5px; border: 2px dashed #059669; font-family: monospace; }
        .details { background-color: white; padding: 15px; border-radius: 5px; margin: 20px 0; }
        .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Payment Verified</h1>
        </div>
        <div class="content">
            <p>Hi %s,</p>
            <p>Your payment has been verified and your license is now active. Here is your license key:</p>
            <div class="key">%s</div>
            <div class="details">
                <p><strong>Plan:</strong> %s</p>
                <p><strong>Valid until:</strong> %s</p>
            </div>
            <p>Keep this key safe. You will need it to activate the application.</p>
        </div>
        <div class="footer">
            <p>&copy; 2026 SnappyTools. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`, toName, licenseKey, titleCase(plan), expiresAt.Format("January 2, 2006"))

	return s.SendEmail(ctx, toEmail, subject, body)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SendWelcomeEmail sends a registration greeting. Delivery failures
// are not fatal to registration.
func (s *Service) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	subject := "Welcome to SnappyTools"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #059669; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 5px 5px; }
        .footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Welcome</h1>
        </div>
        <div class="content">
            <p>Hi %s,</p>
            <p>Your SnappyTools account has been created.</p>
            <p>To get a license, pick a plan on your dashboard and submit your payment reference. An admin will verify the payment and email you your license key.</p>
        </div>
        <div class="footer">
            <p>&copy; 2026 SnappyTools. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`, toName)

	return s.SendEmail(ctx, toEmail, subject, body)
}
