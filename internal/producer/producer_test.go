package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmrzaf/mockstream/internal/domain"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/schema"
)

type published struct {
	topic string
	key   string
	value []byte
}

type fakeSink struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	topics     []string
	msgs       []published
	flushes    int
	failEvery  int
	flushErr   error
	connectErr error
	onPublish  func(n int)
}

func (s *fakeSink) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSink) EnsureTopic(ctx context.Context, topic string) error {
	s.topics = append(s.topics, topic)
	return nil
}

func (s *fakeSink) Publish(ctx context.Context, topic, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.msgs) + 1
	if s.onPublish != nil {
		s.onPublish(n)
	}
	if s.failEvery > 0 && n%s.failEvery == 0 {
		s.msgs = append(s.msgs, published{})
		return errors.New("broker unavailable")
	}
	s.msgs = append(s.msgs, published{topic: topic, key: key, value: append([]byte(nil), value...)})
	return nil
}

func (s *fakeSink) Flush(ctx context.Context) error {
	s.flushes++
	return s.flushErr
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

const twoTables = `
client:
  id: {type: INT, min: 1, max: 9}
  name: {type: VARCHAR(20), min: 3, max: 8}
event:
  created_at: {type: TIMESTAMP}
  type: {type: VARCHAR(10), enum: [CLICK, VIEW]}
`

func compileTables(t *testing.T, seed int64) []*schema.Table {
	t.Helper()
	s, err := schema.Compile([]byte(twoTables), schema.WithSeed(seed))
	if err != nil {
		t.Fatal(err)
	}
	return s.Tables
}

func TestRun_RoundRobinWithLimit(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, Config{TopicTemplate: "mock.{name}", Limit: 5}, nil)

	stats, err := p.Run(context.Background(), compileTables(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Produced != 5 || stats.Delivered != 5 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.PerTable["client"] != 3 || stats.PerTable["event"] != 2 {
		t.Fatalf("unexpected per-table counts: %v", stats.PerTable)
	}
	if !sink.connected || !sink.closed {
		t.Fatal("sink should be connected and closed")
	}
	if len(sink.topics) != 0 {
		t.Fatal("topics should not be created unless asked")
	}

	wantKeys := []string{"client", "event", "client", "event", "client"}
	for i, m := range sink.msgs {
		if m.key != wantKeys[i] || m.topic != "mock."+wantKeys[i] {
			t.Fatalf("message %d: key %q topic %q", i, m.key, m.topic)
		}
	}

	var first map[string]any
	if err := json.Unmarshal(sink.msgs[0].value, &first); err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first["id"] == nil || first["name"] == nil {
		t.Fatalf("unexpected client record: %v", first)
	}
	if !strings.HasPrefix(string(sink.msgs[0].value), `{"id":`) {
		t.Fatalf("record keys should follow declaration order: %s", sink.msgs[0].value)
	}
}

func TestRun_SameSeedSamePayloadsRegardlessOfPacing(t *testing.T) {
	a := &fakeSink{}
	pa := New(a, Config{Limit: 20}, nil)
	if _, err := pa.Run(context.Background(), compileTables(t, 42)); err != nil {
		t.Fatal(err)
	}

	b := &fakeSink{}
	seed := int64(9)
	pb := New(b, Config{Limit: 20, Pace: true, PaceSeed: &seed}, nil)
	var slept []time.Duration
	pb.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if _, err := pb.Run(context.Background(), compileTables(t, 42)); err != nil {
		t.Fatal(err)
	}

	for i := range a.msgs {
		if !bytes.Equal(a.msgs[i].value, b.msgs[i].value) {
			t.Fatalf("record %d differs with pacing on:\n%s\n%s", i, a.msgs[i].value, b.msgs[i].value)
		}
	}
	if len(slept) != 20 {
		t.Fatalf("expected one pause per record, got %d", len(slept))
	}
	for _, d := range slept {
		if d <= 0 {
			t.Fatalf("non-positive pause: %s", d)
		}
	}
}

func TestRun_ZeroSigmaPacesEverySecond(t *testing.T) {
	sigma := 0.0
	p := New(&fakeSink{}, Config{Limit: 5, Pace: true, PaceSigma: &sigma}, nil)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	if _, err := p.Run(context.Background(), compileTables(t, 1)); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 5 {
		t.Fatalf("expected 5 pauses, got %d", len(slept))
	}
	for _, d := range slept {
		if d != time.Second {
			t.Fatalf("expected fixed 1s pause, got %s", d)
		}
	}
}

func TestRun_UnsetSigmaUsesDefault(t *testing.T) {
	p := New(&fakeSink{}, Config{}, nil)
	if p.cfg.PaceSigma == nil || *p.cfg.PaceSigma != domain.DefaultPaceSigma {
		t.Fatalf("expected default sigma, got %v", p.cfg.PaceSigma)
	}
}

func TestRun_CountsFailedPublishes(t *testing.T) {
	sink := &fakeSink{failEvery: 3}
	p := New(sink, Config{Limit: 9}, nil)
	stats, err := p.Run(context.Background(), compileTables(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Produced != 9 || stats.Failed != 3 || stats.Delivered != 6 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRun_FlushFailureMarksPendingFailed(t *testing.T) {
	sink := &fakeSink{flushErr: errors.New("timeout")}
	p := New(sink, Config{Limit: 4}, nil)
	stats, err := p.Run(context.Background(), compileTables(t, 1))
	if err == nil {
		t.Fatal("expected flush error")
	}
	if stats.Delivered != 0 || stats.Failed != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRun_FlushesPeriodically(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, Config{Limit: 10, FlushEvery: 3}, nil)
	stats, err := p.Run(context.Background(), compileTables(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if sink.flushes != 4 || stats.Delivered != 10 {
		t.Fatalf("expected 4 flushes and 10 delivered, got %d / %+v", sink.flushes, stats)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{onPublish: func(n int) {
		if n == 7 {
			cancel()
		}
	}}
	p := New(sink, Config{}, nil)
	stats, err := p.Run(ctx, compileTables(t, 1))
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if stats.Produced != 7 || stats.Delivered != 7 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRun_StopsAfterDuration(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, Config{Duration: 50 * time.Millisecond, Pace: true}, nil)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		return sleepCtx(ctx, time.Millisecond)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(context.Background(), compileTables(t, 1)); err != nil {
			t.Error(err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after its duration")
	}
}

func TestRun_AutoCreatesTopics(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, Config{TopicTemplate: "{name}.v1", Limit: 1, AutoCreateTopics: true}, nil)
	if _, err := p.Run(context.Background(), compileTables(t, 1)); err != nil {
		t.Fatal(err)
	}
	if len(sink.topics) != 2 || sink.topics[0] != "client.v1" || sink.topics[1] != "event.v1" {
		t.Fatalf("unexpected topics: %v", sink.topics)
	}
}

func TestRun_RejectsBadTemplateBeforeConnecting(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, Config{TopicTemplate: "bad {name}"}, nil)
	if _, err := p.Run(context.Background(), compileTables(t, 1)); err == nil {
		t.Fatal("expected template error")
	}
	if sink.connected {
		t.Fatal("sink should not be connected for an invalid template")
	}
}

func TestRun_ConnectError(t *testing.T) {
	sink := &fakeSink{connectErr: errors.New("refused")}
	p := New(sink, Config{Limit: 1}, nil)
	_, err := p.Run(context.Background(), compileTables(t, 1))
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestRun_VerboseLogsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter("info", &buf)
	p := New(&fakeSink{}, Config{Limit: 2, Verbose: true}, logger)
	if _, err := p.Run(context.Background(), compileTables(t, 1)); err != nil {
		t.Fatal(err)
	}

	var produced int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if rec["msg"] == "record.produced" {
			produced++
			if rec["component"] != "producer" || rec["key"] == nil || rec["value"] == nil {
				t.Fatalf("unexpected record log: %v", rec)
			}
		}
	}
	if produced != 2 {
		t.Fatalf("expected 2 record logs, got %d", produced)
	}
}

func TestLogNormalInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var sum float64
	const n = 2000
	for i := 0; i < n; i++ {
		d := LogNormalInterval(rng, 0.2)
		if d <= 0 {
			t.Fatalf("non-positive interval %s", d)
		}
		sum += d.Seconds()
	}
	mean := sum / n
	if mean < 0.9 || mean > 1.15 {
		t.Fatalf("mean interval %.3fs is far from exp(sigma^2/2)", mean)
	}
}
