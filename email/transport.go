package email

import (
	"crypto/tls"
	"fmt"
	"io"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog/log"
)

// ClientTransport implements Transport on top of an open go-smtp client.
// Each Send is one MAIL/RCPT/DATA transaction on the existing connection.
type ClientTransport struct {
	Client *smtp.Client
}

// Send implements Transport. A failed transaction is aborted with RSET so
// the caller's session can be used for the next message.
func (ct *ClientTransport) Send(from string, to []string, msg io.WriterTo) error {
	if ct == nil || ct.Client == nil {
		return ErrNoTransport
	}

	if err := ct.Client.Mail(from, nil); err != nil {
		return ct.abort(fmt.Errorf("MAIL FROM rejected for %v: %w", from, err))
	}

	for _, addr := range to {
		if err := ct.Client.Rcpt(addr); err != nil {
			return ct.abort(fmt.Errorf("RCPT TO rejected for %v: %w", addr, err))
		}
	}

	w, err := ct.Client.Data()
	if err != nil {
		return ct.abort(fmt.Errorf("DATA rejected: %w", err))
	}

	if _, err := msg.WriteTo(w); err != nil {
		w.Close()
		return ct.abort(fmt.Errorf("can't write the message body: %w", err))
	}

	// The server only accepts or rejects the message once the data is
	// terminated
	if err := w.Close(); err != nil {
		return ct.abort(fmt.Errorf("the server did not accept the message: %w", err))
	}
	return nil
}

// abort resets the current transaction and returns err. A failed RSET is
// only logged, since err is the failure the caller cares about.
func (ct *ClientTransport) abort(err error) error {
	if rerr := ct.Client.Reset(); rerr != nil {
		log.Warn().
			Err(rerr).
			Msg("can't reset the SMTP transaction")
	}
	return err
}

// Dial opens an authenticated session with the SMTP relay described by uc.
// Unless uc.ImplicitTLS is set, the connection is upgraded with STARTTLS
// when the server offers it. It is up to the caller to end the session with
// Quit or Close.
func Dial(uc UserConfig) (*smtp.Client, error) {
	tlsc := &tls.Config{
		ServerName:         uc.SMTPServerHost,
		InsecureSkipVerify: uc.SkipCertVerification,
	}

	var c *smtp.Client
	var err error
	if uc.ImplicitTLS {
		c, err = smtp.DialTLS(uc.Address(), tlsc)
	} else {
		c, err = smtp.Dial(uc.Address())
	}
	if err != nil {
		return nil, fmt.Errorf("can't connect to the SMTP server at %v: %w", uc.Address(), err)
	}

	if !uc.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsc); err != nil {
				c.Close()
				return nil, fmt.Errorf("can't upgrade the connection to TLS: %w", err)
			}
		} else {
			log.Warn().
				Str("address", uc.Address()).
				Msg("the SMTP server does not support STARTTLS; credentials will be sent in the clear")
		}
	}

	if err := c.Auth(sasl.NewPlainClient("", uc.UserName, uc.Password)); err != nil {
		c.Close()
		return nil, fmt.Errorf("can't authenticate with the SMTP server: %w", err)
	}

	log.Debug().
		Str("address", uc.Address()).
		Str("username", uc.UserName).
		Msg("opened an SMTP session")

	return c, nil
}
