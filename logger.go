package procureagent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TranscriptLogger records every exchange of every negotiation session.
// Implementations must be safe for concurrent use; sessions run in parallel.
type TranscriptLogger interface {
	LogTurn(entry TurnLog) error
}

// NewTranscriptLogFilePath returns a file path keyed by time and backend name so runs against
// different capabilities are easy to tell apart.
func NewTranscriptLogFilePath(backend string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(backend)),
	)
}

// TurnLog is one session exchange as written to the transcript log.
type TurnLog struct {
	VendorID       string               `json:"vendor_id"`
	ConversationID string               `json:"conversation_id,omitempty"`
	Turn           int                  `json:"turn"`
	Phase          Phase                `json:"phase"`
	Timestamp      time.Time            `json:"timestamp"`
	Sent           string               `json:"sent"`
	Reply          string               `json:"reply,omitempty"`
	Classification *ReplyClassification `json:"classification,omitempty"`
	Outcome        Outcome              `json:"outcome,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// FileTranscriptLogger buffers turns in memory and writes them on Flush.
type FileTranscriptLogger struct {
	mu     sync.Mutex
	turns  []TurnLog
	writer io.Writer
}

func NewFileTranscriptLogger(writer io.Writer) *FileTranscriptLogger {
	return &FileTranscriptLogger{
		turns:  make([]TurnLog, 0),
		writer: writer,
	}
}

func (l *FileTranscriptLogger) LogTurn(entry TurnLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, entry)
	return nil
}

// Flush writes all buffered turns, grouped by vendor, and clears the buffer.
func (l *FileTranscriptLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	byVendor := make(map[string][]TurnLog)
	for _, t := range l.turns {
		byVendor[t.VendorID] = append(byVendor[t.VendorID], t)
	}

	data, err := json.MarshalIndent(map[string]any{
		"negotiation_run": map[string]any{
			"timestamp": time.Now(),
			"sessions":  byVendor,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write transcript log: %w", err)
	}

	l.turns = l.turns[:0]
	return nil
}

// NoOpTranscriptLogger discards all entries.
type NoOpTranscriptLogger struct{}

func NewNoOpTranscriptLogger() *NoOpTranscriptLogger {
	return &NoOpTranscriptLogger{}
}

func (nop *NoOpTranscriptLogger) LogTurn(TurnLog) error {
	return nil
}

// StdoutTranscriptLogger writes each turn as a JSON line (for Lambda/CloudWatch).
type StdoutTranscriptLogger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStdoutTranscriptLogger() *StdoutTranscriptLogger {
	return &StdoutTranscriptLogger{out: os.Stdout}
}

func (l *StdoutTranscriptLogger) LogTurn(entry TurnLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
