package mail

import (
	"context"
	"fmt"

	brevo "github.com/getbrevo/brevo-go/lib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// emailsSent counts delivery attempts by template so settlement dashboards
// can correlate degraded checkouts with provider failures.
var emailsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total transactional email sends by template and result.",
	},
	[]string{"template", "status"},
)

func init() {
	prometheus.MustRegister(emailsSent)
}

// Message is one rendered email ready for delivery.
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Tags     []string
	Template string
}

// Mailer delivers a rendered message. Implementations must treat every call
// as fire-once: the dispatcher relies on an error meaning "maybe not sent",
// never "sent twice".
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BrevoMailer sends transactional email through the Brevo API.
type BrevoMailer struct {
	client      *brevo.APIClient
	senderName  string
	senderEmail string
}

// NewBrevoMailer builds a mailer bound to the given API key and sender
// identity.
func NewBrevoMailer(apiKey, senderName, senderEmail string) *BrevoMailer {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return &BrevoMailer{
		client:      brevo.NewAPIClient(cfg),
		senderName:  senderName,
		senderEmail: senderEmail,
	}
}

// Send delivers one message and logs the provider message id on success.
func (m *BrevoMailer) Send(ctx context.Context, msg Message) error {
	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.senderName,
			Email: m.senderEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: msg.ToEmail, Name: msg.ToName},
		},
		Subject:     msg.Subject,
		HtmlContent: msg.HTML,
		TextContent: msg.Text,
		Tags:        msg.Tags,
	}

	res, _, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if err != nil {
		emailsSent.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("mail: brevo send %s to %s: %w", msg.Template, msg.ToEmail, err)
	}
	emailsSent.WithLabelValues(msg.Template, "ok").Inc()
	log.Ctx(ctx).Debug().
		Str("template", msg.Template).
		Str("message_id", res.MessageId).
		Msg("transactional email accepted")
	return nil
}

// RenderMessage renders a registered template against params into a
// deliverable message. Subject, HTML and text bodies all pass through the
// same renderer.
func RenderMessage(name string, params map[string]string, toEmail, toName string) (Message, error) {
	tpl, ok := Templates[name]
	if !ok {
		return Message{}, fmt.Errorf("mail: unknown template %q", name)
	}
	subject, err := Render(name, tpl.Subject, params)
	if err != nil {
		return Message{}, err
	}
	html, err := Render(name, tpl.HTML, params)
	if err != nil {
		return Message{}, err
	}
	text, err := Render(name, tpl.Text, params)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  subject,
		HTML:     html,
		Text:     text,
		Tags:     []string{name},
		Template: name,
	}, nil
}
