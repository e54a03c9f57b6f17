package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

type SmtpServer struct {
	HostPort string
	Tls      *tls.Config
	User     string
	Password string
	Hello    string
}

func (options SmtpServer) Configured() bool {
	return options.HostPort != ""
}

func dial(options SmtpServer) (*smtp.Client, error) {
	var client *smtp.Client
	var err error
	if options.Tls != nil {
		client, err = smtp.DialTLS(options.HostPort, options.Tls)
	} else {
		client, err = smtp.Dial(options.HostPort)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to smtp server: %w", err)
	}

	if options.Hello != "" {
		if err = client.Hello(options.Hello); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("could not greet upstream: %w", err)
		}
	}

	if options.User != "" || options.Password != "" {
		if err := client.Auth(sasl.NewLoginClient(options.User, options.Password)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("AUTH failed: %w", err)
		}
	}
	return client, nil
}

// Send delivers email over one SMTP session.
func Send(options SmtpServer, email Message) error {
	client, err := dial(options)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(email.From, nil); err != nil {
		return fmt.Errorf("smtp server rejected mail from '%s': %w", email.From, err)
	}
	for _, address := range email.To {
		if err := client.Rcpt(address, nil); err != nil {
			return fmt.Errorf("smtp server rejected mail to '%s': %w", address, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp server rejected request to send mail data: %w", err)
	}
	if err = email.Write(writer); err != nil {
		_ = writer.Close()
		return err
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("smtp server rejected mail data: %w", err)
	}

	err = client.Quit()
	if err != nil {
		smtpError := &smtp.SMTPError{}
		// Seems some SMTP servers return 250 instead of 221 on QUIT
		if errors.As(err, &smtpError) && smtpError.Code == 250 {
			return nil
		}
		return err
	}
	return nil
}

// SmtpSender is a Sender backed by an SMTP relay.
type SmtpSender struct {
	Server SmtpServer
}

func (s SmtpSender) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Send(s.Server, message)
}

// IsPermanent reports whether the SMTP server refused the message for good (5xx), in which case
// retrying the same message is pointless.
func IsPermanent(err error) bool {
	smtpError := &smtp.SMTPError{}
	return errors.As(err, &smtpError) && smtpError.Code >= 500 && smtpError.Code < 600
}
