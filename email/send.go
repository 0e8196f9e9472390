package email

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/ptgott/mailutil/sendlog"
	"github.com/rs/zerolog/log"
)

// Transport is an open mail session that can deliver a composed message to
// a set of envelope recipients. The caller owns its lifecycle: this package
// never connects, authenticates, or closes a Transport while sending.
//
// The method set matches gomail.Sender, so a gomail.SendFunc can stand in
// for a real session.
type Transport interface {
	Send(from string, to []string, msg io.WriterTo) error
}

// Request describes one email to send.
type Request struct {
	From            string
	To              string
	Cc              []string
	AttachmentPaths []string
	Subject         string
	Body            string
}

// Result reports the outcome of a send. Err is nil iff OK is true.
type Result struct {
	OK  bool
	Err *SendError
}

// Sender sends messages through a Transport and appends each outcome to the
// log file at LogFilePath. Create one with NewSender.
type Sender struct {
	transport   Transport
	logFilePath string
	now         func() time.Time
}

// NewSender returns a Sender that uses t for delivery and appends outcomes
// to the file at logFilePath.
func NewSender(t Transport, logFilePath string) *Sender {
	return &Sender{
		transport:   t,
		logFilePath: logFilePath,
		now:         time.Now,
	}
}

// SendEmail sends one email through t and appends the outcome to the file at
// logFilePath, returning true iff the message was delivered and the outcome
// recorded. No error or panic escapes: every failure becomes false plus a
// log line.
func SendEmail(
	sender string,
	recipient string,
	cc []string,
	attachmentPaths []string,
	subject string,
	body string,
	t Transport,
	logFilePath string,
) bool {
	return NewSender(t, logFilePath).Send(Request{
		From:            sender,
		To:              recipient,
		Cc:              cc,
		AttachmentPaths: attachmentPaths,
		Subject:         subject,
		Body:            body,
	}).OK
}

// Send attempts to deliver r once, then appends exactly one line to the log
// file describing what happened.
func (s *Sender) Send(r Request) Result {
	err := s.deliver(r)
	ts := s.now()

	var e sendlog.Entry
	if err != nil {
		e = sendlog.NewError(r.To, ts, err)
	} else {
		e = sendlog.NewSuccess(r.To, ts)
	}

	if lerr := sendlog.Append(s.logFilePath, e); lerr != nil {
		log.Error().
			Err(lerr).
			Str("logFilePath", s.logFilePath).
			Str("recipient", r.To).
			Str("outcome", string(e.Outcome)).
			Msg("can't record the send outcome")
		// Keep the original failure if there was one.
		if err == nil {
			err = newSendError(KindLog, lerr)
		}
	}

	if err != nil {
		log.Debug().
			Err(err).
			Str("recipient", r.To).
			Str("kind", string(err.Kind)).
			Msg("send failed")
		return Result{OK: false, Err: err}
	}

	log.Debug().
		Str("recipient", r.To).
		Int("cc", len(r.Cc)).
		Int("attachments", len(r.AttachmentPaths)).
		Msg("email sent")
	return Result{OK: true}
}

// deliver reads attachments, composes the message, and hands it to the
// transport. A panicking transport (e.g., a closed session) is reported as
// a transport failure.
func (s *Sender) deliver(r Request) (serr *SendError) {
	if s.transport == nil {
		return newSendError(KindTransport, ErrNoTransport)
	}

	as, err := ReadAttachments(r.AttachmentPaths)
	if err != nil {
		return asSendError(err, KindFileRead)
	}

	m := &Message{
		From:        r.From,
		To:          r.To,
		Cc:          r.Cc,
		Subject:     r.Subject,
		Body:        r.Body,
		Attachments: as,
	}

	raw, err := Compose(m, s.now())
	if err != nil {
		return asSendError(err, KindEncode)
	}

	defer func() {
		if p := recover(); p != nil {
			serr = newSendError(KindTransport, fmt.Errorf("the SMTP session failed: %v", p))
		}
	}()

	if err := s.transport.Send(m.From, m.Recipients(), bytes.NewReader(raw)); err != nil {
		return newSendError(KindTransport, err)
	}
	return nil
}
