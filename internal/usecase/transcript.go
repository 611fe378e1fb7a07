package usecase

import (
	"strings"
	"sync"

	"voicebridge/internal/domain"
)

// TranscriptLog is the append-only list of translated sentences.
type TranscriptLog struct {
	mu      sync.Mutex
	entries []domain.TranscriptEntry
}

func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append stores entry with trimmed text. Empty sentences are skipped.
func (l *TranscriptLog) Append(entry domain.TranscriptEntry) (domain.TranscriptEntry, bool) {
	entry.Text = strings.TrimSpace(entry.Text)
	if entry.Text == "" {
		return domain.TranscriptEntry{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return entry, true
}

func (l *TranscriptLog) Entries() []domain.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Export writes every sentence followed by a single space.
func (l *TranscriptLog) Export() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for _, entry := range l.entries {
		b.WriteString(entry.Text)
		b.WriteByte(' ')
	}
	return b.String()
}

func (l *TranscriptLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
