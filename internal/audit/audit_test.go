package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{BufferSize: 8}, sink, nil)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{Type: "login", Metadata: map[string]string{"n": string(rune('0' + i))}})
	}
	d.Close()

	for i := 0; i < 3; i++ {
		select {
		case ev := <-sink.Events():
			if ev.Metadata["n"] != string(rune('0'+i)) {
				t.Fatalf("out of order: %+v", ev)
			}
			if ev.Timestamp.IsZero() {
				t.Fatal("timestamp must be set")
			}
		default:
			t.Fatalf("missing event %d", i)
		}
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(ctx context.Context, _ Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(sink.release)
	d.Close()
}

type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("broker down") }

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := NewDispatcher(Config{BufferSize: 4}, failingSink{}, logger)
	d.Emit(context.Background(), Event{Type: "security_alert"})
	d.Close()

	if d.Failed() != 1 {
		t.Fatalf("expected one failure, got %d", d.Failed())
	}
	if !strings.Contains(buf.String(), "broker down") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{Type: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Failed() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{BufferSize: 1}, sink, nil)
	d.Close()
	d.Emit(context.Background(), Event{Type: "late"})

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event after close: %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	if err := sink.Emit(context.Background(), Event{Type: "logout", SubjectID: "u1", Success: true}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "logout" || got.SubjectID != "u1" || !got.Success {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	ch := NewChannelSink(1)
	err := MultiSink{failingSink{}, ch}.Emit(context.Background(), Event{Type: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ch.Events()) != 1 {
		t.Fatal("later sinks must still receive the event")
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	_ = sink.Emit(context.Background(), Event{Type: "login", Success: false, IP: "203.0.113.1"})
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "203.0.113.1") {
		t.Fatalf("unexpected log output: %q", buf.String())
	}
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	sink := &KafkaSink{writer: w}

	ev := Event{Type: "security_alert", Identity: "alice", IP: "203.0.113.9"}
	if err := sink.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "alice" {
		t.Fatalf("expected identity key, got %q", w.msgs[0].Key)
	}
	var got Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "security_alert" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if err := sink.Close(); err != nil || !w.closed {
		t.Fatal("Close must close the writer")
	}
}

func TestKafkaSinkWrapsErrors(t *testing.T) {
	sink := &KafkaSink{writer: &recordingWriter{err: io.ErrClosedPipe}}
	if err := sink.Emit(context.Background(), Event{Type: "x"}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestNewKafkaSinkValidates(t *testing.T) {
	if _, err := NewKafkaSink(nil, "alerts"); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, ""); err == nil {
		t.Fatal("expected error without topic")
	}
	sink, err := NewKafkaSink([]string{"localhost:9092"}, "alerts")
	if err != nil {
		t.Fatalf("NewKafkaSink: %v", err)
	}
	_ = sink.Close()
}
