// Package mail sends notification emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"go.uber.org/zap"
)

// Message is one email. Body is rendered from Template and Data when Template
// is set.
type Message struct {
	To       []string
	Subject  string
	Template string
	Data     map[string]any
	Body     string
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

var templates = template.Must(template.New("mail").Funcs(sprig.TxtFuncMap()).Parse(`
{{- define "otp" -}}
Hello {{ .name | default "there" }},

Your login code is {{ .code }}. It expires in {{ .minutes }} minutes.
{{- end -}}
{{- define "food_collected" -}}
Hello {{ .name | default "there" }},

Your {{ .preference | default "meal" | lower }} meal was collected at {{ .time }}.
{{- end -}}
{{- define "approval" -}}
Hello {{ .name | default "there" }},

Your access request was {{ .outcome | lower }}.{{ if .reason }} Note: {{ .reason }}{{ end }}
{{- end -}}
{{- define "plain" -}}
{{ .body }}
{{- end -}}
`))

// Render produces the message body.
func Render(msg Message) (string, error) {
	if msg.Template == "" {
		return msg.Body, nil
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, msg.Template, msg.Data); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPDispatcher delivers through a single SMTP relay.
type SMTPDispatcher struct {
	cfg SMTPConfig
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg}
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	body, err := Render(msg)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(body)

	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	var auth smtp.Auth
	if d.cfg.User != "" {
		auth = smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)
	}

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, d.cfg.From, msg.To, buf.Bytes()) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogDispatcher only logs. It is used when no SMTP host is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.Named("mail")}
}

func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	body, err := Render(msg)
	if err != nil {
		return err
	}
	d.logger.Info("mail not sent, no smtp configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(body)))
	return nil
}

// Async hands messages to a goroutine and never reports failures to the
// caller. Failures are logged.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	logger  *zap.Logger
}

func NewAsync(next Dispatcher, timeout time.Duration, logger *zap.Logger) *Async {
	return &Async{next: next, timeout: timeout, logger: logger.Named("mail")}
}

func (a *Async) Send(_ context.Context, msg Message) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Send(ctx, msg); err != nil {
			a.logger.Warn("mail delivery failed",
				zap.Strings("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err))
		}
	}()
	return nil
}
