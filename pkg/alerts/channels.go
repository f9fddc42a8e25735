package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoProvider marks a channel whose credentials are absent. The
// recipient is recorded as no_provider, never a crash.
var ErrNoProvider = fmt.Errorf("no provider configured")

// Channel delivers one rendered message to one address. A send is
// successful iff the provider acknowledges within the channel timeout.
type Channel interface {
	Type() string
	Send(ctx context.Context, address string, msg Message) error
}

// EmailChannel delivers over SMTP with a dial timeout.
type EmailChannel struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

func (c *EmailChannel) Type() string { return "email" }

// Send connects, authenticates when credentials are present, and writes
// a multipart/alternative body so clients can pick plain or HTML.
func (c *EmailChannel) Send(ctx context.Context, address string, msg Message) error {
	if c.Host == "" || c.From == "" {
		return ErrNoProvider
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	conn, err := net.DialTimeout("tcp", addr, c.Timeout)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(c.Timeout))

	client, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(nil); err != nil {
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	if c.User != "" {
		auth := smtp.PlainAuth("", c.User, c.Password, c.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(c.From); err != nil {
		return fmt.Errorf("smtp mail from failed: %w", err)
	}
	if err := client.Rcpt(address); err != nil {
		return fmt.Errorf("smtp rcpt failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write(buildMIME(c.From, address, msg)); err != nil {
		return fmt.Errorf("smtp body write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp body close failed: %w", err)
	}
	return client.Quit()
}

// buildMIME assembles the multipart/alternative message.
func buildMIME(from, to string, msg Message) []byte {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMessage-ID: <%s@afrostorm>\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		from, to, msg.Subject, uuid.NewString(), mw.Boundary())

	plain, _ := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	fmt.Fprint(plain, msg.Plain)
	htmlPart, _ := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	fmt.Fprint(htmlPart, msg.HTML)
	mw.Close()

	return append([]byte(headers), body.Bytes()...)
}

// WebhookChannel POSTs the message as JSON to the recipient URL.
type WebhookChannel struct {
	Client *http.Client
}

func (c *WebhookChannel) Type() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, address string, msg Message) error {
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		return fmt.Errorf("invalid webhook address %q", address)
	}

	payload, err := json.Marshal(map[string]string{
		"subject": msg.Subject,
		"message": msg.Plain,
		"html":    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SMSChannel posts short messages to the SMS gateway API.
type SMSChannel struct {
	APIURL string
	APIKey string
	Client *http.Client
}

func (c *SMSChannel) Type() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, address string, msg Message) error {
	if c.APIURL == "" || c.APIKey == "" {
		return ErrNoProvider
	}

	text := msg.Plain
	if len(text) > 480 { // 3 concatenated GSM segments
		text = text[:480]
	}
	payload, err := json.Marshal(map[string]string{
		"to":      address,
		"message": text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
