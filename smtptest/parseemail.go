package smtptest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

// Part is one decoded MIME part of a received message.
type Part struct {
	Header  textproto.MIMEHeader
	Content []byte
}

// MediaType returns the part's media type without parameters.
func (p Part) MediaType() string {
	mt, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Filename returns the filename parameter of the part's
// Content-Disposition, or an empty string if there isn't one.
func (p Part) Filename() string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// ParsedEmail is a received message split into its top-level headers and
// leaf parts. A message that isn't multipart has exactly one part.
type ParsedEmail struct {
	Header mail.Header
	Parts  []Part
}

// Attachments returns the parts with an "attachment" Content-Disposition.
func (pe *ParsedEmail) Attachments() []Part {
	var r []Part
	for _, p := range pe.Parts {
		if strings.HasPrefix(p.Header.Get("Content-Disposition"), "attachment") {
			r = append(r, p)
		}
	}
	return r
}

// ParseEmail takes a single raw email as received by a test server and
// decodes its parts. Nested multiparts are flattened.
func ParseEmail(raw string) (*ParsedEmail, error) {
	m, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("can't read the email headers: %v", err)
	}

	parts, err := readParts(textproto.MIMEHeader(m.Header), m.Body)
	if err != nil {
		return nil, err
	}

	return &ParsedEmail{
		Header: m.Header,
		Parts:  parts,
	}, nil
}

func readParts(h textproto.MIMEHeader, body io.Reader) ([]Part, error) {
	mt, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mt, "multipart/") {
		c, err := decode(h.Get("Content-Transfer-Encoding"), body)
		if err != nil {
			return nil, err
		}
		return []Part{{Header: h, Content: c}}, nil
	}

	var r []Part
	rdr := multipart.NewReader(body, params["boundary"])
	for {
		p, err := rdr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("can't read the next MIME part: %v", err)
		}
		ps, err := readParts(p.Header, p)
		if err != nil {
			return nil, err
		}
		r = append(r, ps...)
	}
	return r, nil
}

func decode(cte string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		// Encoders wrap base64 lines, which the decoder won't skip on its
		// own
		b = bytes.Map(func(c rune) rune {
			if c == '\r' || c == '\n' {
				return -1
			}
			return c
		}, b)
		return base64.StdEncoding.DecodeString(string(b))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}
