package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"
)

// Every attachment is sent as opaque binary data, whatever its extension.
const attachmentContentType string = "application/octet-stream"

// Attachment is a file's contents paired with the name it's sent under.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is everything needed to compose one email. It only lives for the
// duration of a single send.
type Message struct {
	From        string
	To          string
	Cc          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Recipients returns the envelope recipients: the primary recipient
// followed by every CC address, in order.
func (m *Message) Recipients() []string {
	r := make([]string, 0, len(m.Cc)+1)
	r = append(r, m.To)
	return append(r, m.Cc...)
}

// ReadAttachments reads each file in paths in full. It stops at the first
// failure so that a missing file means nothing gets sent.
func ReadAttachments(paths []string) ([]Attachment, error) {
	as := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newSendError(KindFileNotFound, fmt.Errorf("can't find the attachment %v: %w", p, err))
		}
		if err != nil {
			return nil, newSendError(KindFileRead, fmt.Errorf("can't read the attachment %v: %w", p, err))
		}
		as = append(as, Attachment{
			Filename: filepath.Base(p),
			Content:  b,
		})
	}
	return as, nil
}

// Compose renders m as a MIME message. The Cc header is always present and
// holds the CC addresses joined with ", " (empty if there are none). A
// message with attachments is multipart/mixed, with the body as the first
// part and each attachment base64-encoded as application/octet-stream.
func Compose(m *Message, date time.Time) ([]byte, error) {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.From)
	gm.SetHeader("To", m.To)
	gm.SetHeader("Cc", strings.Join(m.Cc, ", "))
	gm.SetHeader("Subject", m.Subject)
	gm.SetHeader("Message-ID", messageID(m.From))
	gm.SetDateHeader("Date", date)
	gm.SetBody("text/plain", m.Body)

	for _, a := range m.Attachments {
		content := a.Content
		gm.Attach(
			a.Filename,
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachmentContentType},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		)
	}

	var buf bytes.Buffer
	if _, err := gm.WriteTo(&buf); err != nil {
		return nil, newSendError(KindEncode, fmt.Errorf("can't build the MIME message: %w", err))
	}
	return buf.Bytes(), nil
}

// messageID builds a Message-ID using the sender's domain, falling back to
// localhost if the sender doesn't have one.
func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = strings.TrimSuffix(from[i+1:], ">")
	}
	return fmt.Sprintf("<%v@%v>", uuid.New().String(), domain)
}
