package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

// SMTPNotifier отправляет письма через SMTP-сервер, с STARTTLS если сервер его поддерживает.
type SMTPNotifier struct {
	host string
	from string
	opts []mail.Option
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	return &SMTPNotifier{host: host, from: from, opts: opts}
}

func (n *SMTPNotifier) Notify(ctx context.Context, to, subject, body string) error {
	msg, err := n.message(to, subject, body)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(n.host, n.opts...)
	if err != nil {
		return errors.Wrap(err, "smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "send mail to %s", to)
	}
	return nil
}

// message собирает письмо. Заголовки с не-ASCII текстом кодируются по RFC 2047.
func (n *SMTPNotifier) message(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, errors.Wrapf(err, "invalid sender %q", n.from)
	}
	if err := msg.To(to); err != nil {
		return nil, errors.Wrapf(err, "invalid recipient %q", to)
	}
	msg.Subject(subject)
	msg.SetMessageIDWithValue(uuid.NewString() + "@" + n.host)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
