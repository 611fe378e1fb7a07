package usecase

import (
	"testing"

	"voicebridge/internal/domain"
)

func TestTranscriptLogExportJoinsWithTrailingSpace(t *testing.T) {
	t.Parallel()

	log := NewTranscriptLog()
	log.Append(domain.TranscriptEntry{Text: "Merhaba"})
	log.Append(domain.TranscriptEntry{Text: "Nasılsın"})

	if got := log.Export(); got != "Merhaba Nasılsın " {
		t.Fatalf("unexpected export: %q", got)
	}
}

func TestTranscriptLogSkipsEmptyAndTrims(t *testing.T) {
	t.Parallel()

	log := NewTranscriptLog()
	if _, ok := log.Append(domain.TranscriptEntry{Text: "   "}); ok {
		t.Fatalf("expected blank entry to be skipped")
	}
	entry, ok := log.Append(domain.TranscriptEntry{Text: "  hello  "})
	if !ok || entry.Text != "hello" {
		t.Fatalf("unexpected entry: %+v ok=%t", entry, ok)
	}
	if log.Len() != 1 {
		t.Fatalf("expected one entry, got %d", log.Len())
	}
}

func TestTranscriptLogClear(t *testing.T) {
	t.Parallel()

	log := NewTranscriptLog()
	log.Append(domain.TranscriptEntry{Text: "one"})
	entries := log.Entries()
	entries[0].Text = "mutated"

	if log.Entries()[0].Text != "one" {
		t.Fatalf("expected entries to be copied")
	}

	log.Clear()
	if log.Len() != 0 || log.Export() != "" {
		t.Fatalf("expected empty log after clear")
	}
}
