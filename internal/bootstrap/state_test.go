package bootstrap

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	original := &Snapshot{
		Time: time.Date(2021, 4, 1, 12, 30, 0, 0, time.UTC),
		Tables: map[string]map[string]int64{
			"burgers": {"id": 150},
			"orders":  {"id": 50, "serial": 1234567890},
		},
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, original); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	parsed, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !parsed.Time.Equal(original.Time) {
		t.Errorf("time changed: %v vs %v", parsed.Time, original.Time)
	}
	if parsed.Tables["orders"]["serial"] != 1234567890 {
		t.Errorf("positions changed: %+v", parsed.Tables)
	}
}

func TestReadSnapshot_PlainDocument(t *testing.T) {
	doc := "time: 2021-04-01T00:00:00Z\n" +
		"tables:\n" +
		"  unpartitioned:\n" +
		"    id: 50\n"
	s, err := ReadSnapshot(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Time.Equal(time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time: %v", s.Time)
	}
	if s.Tables["unpartitioned"]["id"] != 50 {
		t.Errorf("unexpected positions: %+v", s.Tables)
	}
}

func TestReadSnapshot_RejectsUnknownKeys(t *testing.T) {
	doc := "time: 2021-04-01T00:00:00Z\n" +
		"tables: {}\n" +
		"surprise: true\n"
	if _, err := ReadSnapshot(strings.NewReader(doc)); err == nil {
		t.Fatal("expected unknown top-level keys to be rejected")
	}
}
