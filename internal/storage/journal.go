package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEvent is one settlement event appended to the journal: a claim,
// an accrual, or a stream advance. Amounts are decimal strings.
type JournalEvent struct {
	Time    string   `json:"time"`
	Op      string   `json:"op"`
	User    string   `json:"user,omitempty"`
	To      string   `json:"to,omitempty"`
	Streams []string `json:"streams,omitempty"`
	Payout  string   `json:"payout,omitempty"`
}

// Journal appends settlement events to a JSONL file.
type Journal struct {
	path string
	mu   sync.Mutex
}

func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes a batch of events as JSON lines, stamping any event with
// an empty Time.
func (j *Journal) Append(events []JournalEvent) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		if event.Time == "" {
			event.Time = time.Now().UTC().Format(time.RFC3339)
		}
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal journal event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write journal event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	return nil
}
