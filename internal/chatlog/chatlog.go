// Package chatlog persists chat messages to an append-only, line-oriented
// text log and reconstructs in-memory history from it on startup.
//
// The on-disk format is legacy and lossy: each message is three
// newline-terminated lines — "<address> <time_str>", the message text, and a
// blank separator — with no escaping. A message containing a blank line or
// the header pattern will corrupt reconstruction. The format is isolated
// behind encodeRecord/decodeRecords so a structured replacement can be
// swapped in without touching callers.
package chatlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// reconstructedStep is the synthetic spacing, in seconds, between timestamps
// fabricated for reloaded messages. The true send time survives only in the
// formatted time string.
const reconstructedStep = 10

// Log appends chat messages to one file per calendar day inside a directory
// and reloads the current day's file on startup.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Log writing into dir. The directory is created on first
// append if it does not exist.
func New(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

// Path returns the log file for the current day, e.g. chat_20260828.txt.
func (l *Log) Path() string {
	return filepath.Join(l.dir, fmt.Sprintf("chat_%s.txt", l.now().Format("20060102")))
}

// Append writes the three-line record for m to the current day's log. The
// record is written with a single Write call under the log mutex, so
// concurrent appends can never interleave partial records.
func (l *Log) Append(m Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create chat dir: %w", err)
	}

	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open chat log: %w", err)
	}

	if _, err := f.Write(encodeRecord(m)); err != nil {
		f.Close()
		return fmt.Errorf("append chat log: %w", err)
	}
	return f.Close()
}

// LoadAll reads the current day's log, if present, and reconstructs the
// messages in file order. Addresses are resolved to display names through
// resolve in log order, so name assignment after a restart follows the
// order addresses first appear in the log. Malformed runs are skipped; a
// missing file yields an empty history.
func (l *Log) LoadAll(resolve func(addr string) string) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chat log: %w", err)
	}

	return decodeRecords(data, resolve, l.now()), nil
}

func encodeRecord(m Message) []byte {
	return []byte(m.SenderAddr + " " + m.TimeString + "\n" + m.Text + "\n\n")
}

func decodeRecords(data []byte, resolve func(addr string) string, now time.Time) []Message {
	lines := strings.Split(string(data), "\n")

	var msgs []Message
	for i := 0; i+2 < len(lines); i += 3 {
		header := strings.TrimSpace(lines[i])
		text := strings.TrimSpace(lines[i+1])
		if header == "" || text == "" {
			continue
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 {
			continue
		}
		addr, timeStr := parts[0], parts[1]

		// Timestamps are fabricated walking backward from now; only the
		// formatted string preserves the original send time.
		synthetic := float64(now.UnixNano())/float64(time.Second) - float64(len(msgs)*reconstructedStep)

		msgs = append(msgs, Message{
			ID:         fmt.Sprintf("hist_%d", i),
			Text:       text,
			SenderName: resolve(addr),
			SenderAddr: addr,
			Timestamp:  synthetic,
			TimeString: timeStr,
		})
	}
	return msgs
}
