package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bikebill/authcore/internal/stores"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, []stores.Alert{{
		ID:        "a1",
		Kind:      "repeated_login_failure",
		IP:        "203.0.113.10",
		Identity:  "alice",
		Attempts:  5,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CREATED", "2026-03-01T12:00:00Z", "203.0.113.10", "alice"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTable(&buf, nil); err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	if !strings.Contains(buf.String(), "no alerts") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, []stores.Alert{{ID: "a1"}, {ID: "a2"}}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
}
