package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// doubtful we'll get an email this big, but we need a limit
const maxEmailSize int64 = 100 * units.MiB

// Message is one email received by the server, including its SMTP envelope
// and the time it was stored, allowing us to inspect messages sent
// before/after a timestamp.
type Message struct {
	Created time.Time
	From    string
	To      []string
	Body    string
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	*InMemoryEmailStore
}

// Login implements smtp.Backend. Any username/password is fine, since we
// don't want to couple this with specific test configurations.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username != "" && password != "" {
		return &session{store: be.InMemoryEmailStore}, nil
	}
	return nil, errors.New("no username or password provided")
}

// AnonymousLogin implements smtp.Backend. Not supported since we want to
// enforce AUTH.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

// session implements smtp.Session for a single connection, collecting the
// envelope of the current transaction until DATA completes.
type session struct {
	store *InMemoryEmailStore
	open  bool
	from  string
	to    []string
}

// Reset implements smtp.Session. The server calls it for RSET and after
// DATA.
func (s *session) Reset() {
	s.open = false
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session. Starts a new transaction, refusing a
// nested MAIL the way RFC 5321 relays do.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	if s.open {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "nested MAIL command",
		}
	}
	s.open = true
	s.from = from
	s.to = nil
	return nil
}

// Rcpt implements smtp.Session. Addresses the store was told to reject
// get a permanent failure.
func (s *session) Rcpt(to string) error {
	if s.store.rejects(to) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "mailbox unavailable",
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the email data in memory for
// retrieval at the end of the test.
func (s *session) Data(r io.Reader) error {
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}
	s.store.saveEmail(s.from, s.to, string(buf))
	return nil
}

// InMemoryEmailStore retains email messages in memory for comparison
// against a test's expected output. Designed to be goroutine safe since we
// don't know how many connections will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []Message
	rejected map[string]struct{}
}

// RejectRecipient makes the server refuse RCPT TO for addr.
func (es *InMemoryEmailStore) RejectRecipient(addr string) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.rejected[addr] = struct{}{}
}

func (es *InMemoryEmailStore) rejects(addr string) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	_, ok := es.rejected[addr]
	return ok
}

// saveEmail stores the email along with a timestamp created just prior to
// saving
func (es *InMemoryEmailStore) saveEmail(from string, to []string, bod string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.messages = append(es.messages, Message{
		Created: time.Now(),
		From:    from,
		To:      append([]string(nil), to...),
		Body:    bod,
	})
}

// RetrieveMessages returns every message received after epoch nanoseconds
// t, envelope included.
func (es *InMemoryEmailStore) RetrieveMessages(t int64) []Message {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]Message, 0, len(es.messages))
	for _, m := range es.messages {
		if m.Created.UnixNano() >= t {
			r = append(r, m)
		}
	}
	return r
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	ms := es.RetrieveMessages(t)
	r := make([]string, len(ms))
	for i := range ms {
		r[i] = ms[i].Body
	}
	return r, nil
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random
// loopback port, including configuring its SMTP server to store incoming
// messages in memory. Must provide the paths to the key and cert used for
// TLS. The cert must be a root cert.
func NewInProcessServer(keypath string, certpath string) (*InProcessServer, error) {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []Message{},
		rejected: map[string]struct{}{},
	}

	srv := smtp.NewServer(&Backend{
		is,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = false // need AUTH here
	srv.AuthDisabled = false      // need AUTH here
	// Strict is undocumented, but it looks like it enforces <address> syntax
	// in messages:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true
	srv.MaxMessageBytes = int(maxEmailSize)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second

	cert, err := tls.LoadX509KeyPair(certpath, keypath)
	if err != nil {
		return nil, err
	}

	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	// Listening here rather than in Start means the address is usable as
	// soon as the constructor returns.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		listener:           l,
	}, nil
}

// Start starts the test server. Blocking.
func (is *InProcessServer) Start() error {
	// Not using ListenAndServeTLS--the client should upgrade the connection
	// to TLS
	return is.Server.Serve(is.listener)
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
