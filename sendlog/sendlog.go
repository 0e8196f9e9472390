package sendlog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used in each line, e.g.,
// 2024-03-09 14:02:11.000512
const TimeLayout string = "2006-01-02 15:04:05.000000"

// Outcome is the second field of a log line
type Outcome string

const (
	Success Outcome = "success"
	Error   Outcome = "error"
)

// Entry is a single line in the outcome log. Err is only written for
// entries with the Error outcome.
type Entry struct {
	Recipient string
	Outcome   Outcome
	Time      time.Time
	Err       error
}

// NewSuccess returns an Entry recording a delivered message.
func NewSuccess(recipient string, t time.Time) Entry {
	return Entry{
		Recipient: recipient,
		Outcome:   Success,
		Time:      t,
	}
}

// NewError returns an Entry recording a failed send and its cause.
func NewError(recipient string, t time.Time, err error) Entry {
	return Entry{
		Recipient: recipient,
		Outcome:   Error,
		Time:      t,
		Err:       err,
	}
}

// Format renders e as a single line, including the trailing newline:
//
//	recipient,success,timestamp
//	recipient,error,timestamp,error message
//
// Commas inside the error message are left alone. Line breaks are replaced
// with spaces since SMTP servers like to send multi-line replies and each
// entry must stay on one line.
func Format(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Recipient)
	b.WriteByte(',')
	b.WriteString(string(e.Outcome))
	b.WriteByte(',')
	b.WriteString(e.Time.Format(TimeLayout))
	if e.Outcome == Error {
		b.WriteByte(',')
		if e.Err != nil {
			b.WriteString(oneLine(e.Err.Error()))
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// Append writes e to the end of the file at path, creating the file if it
// doesn't exist yet. The file is closed before Append returns.
func Append(path string, e Entry) (err error) {
	if path == "" {
		return errors.New("no log file path provided")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("can't open the log file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("can't close the log file: %w", cerr)
		}
	}()

	if _, err := f.WriteString(Format(e)); err != nil {
		return fmt.Errorf("can't write to the log file: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
