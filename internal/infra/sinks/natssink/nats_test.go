package natssink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T, jetstream bool) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1, JetStream: jetstream}
	if jetstream {
		opts.StoreDir = t.TempDir()
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestSink_PublishCarriesKeyHeader(t *testing.T) {
	url := startTestNATS(t, false)
	ctx := context.Background()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("mock.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	sink := New(Config{URL: url}, nil)
	if err := sink.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if err := sink.Publish(ctx, "mock.client", "client", []byte(`{"id":1}`)); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "mock.client" {
			t.Errorf("subject = %q", msg.Subject)
		}
		if got := msg.Header.Get(KeyHeader); got != "client" {
			t.Errorf("key header = %q", got)
		}
		if string(msg.Data) != `{"id":1}` {
			t.Errorf("data = %s", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSink_EnsureTopicCreatesStreamOnce(t *testing.T) {
	url := startTestNATS(t, true)
	ctx := context.Background()

	sink := New(Config{URL: url}, nil)
	if err := sink.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if err := sink.EnsureTopic(ctx, "mock.event"); err != nil {
		t.Fatalf("EnsureTopic: %v", err)
	}
	if err := sink.EnsureTopic(ctx, "mock.event"); err != nil {
		t.Fatalf("EnsureTopic should be idempotent: %v", err)
	}
	if err := sink.Publish(ctx, "mock.event", "event", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := js.StreamInfo("mock_event")
		if err != nil {
			t.Fatalf("stream not created: %v", err)
		}
		if info.State.Msgs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 retained message, got %d", info.State.Msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSink_EnsureTopicRejectsWildcards(t *testing.T) {
	url := startTestNATS(t, true)
	sink := New(Config{URL: url}, nil)
	if err := sink.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if err := sink.EnsureTopic(context.Background(), "mock.*"); err == nil {
		t.Fatal("expected wildcard subject to be rejected")
	}
}

func TestSink_NotConnected(t *testing.T) {
	sink := New(Config{URL: "nats://127.0.0.1:1"}, nil)
	if err := sink.Publish(context.Background(), "a", "k", nil); err == nil {
		t.Fatal("expected error before Connect")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close before Connect should be a no-op: %v", err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.properties")
	content := "# local broker\nbootstrap.servers=nats://127.0.0.1:4222\nclient.id=mockstream\nuser=app\npassword=secret\nreplicas=3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "nats://127.0.0.1:4222" || cfg.Name != "mockstream" || cfg.User != "app" || cfg.Password != "secret" || cfg.Replicas != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("name=x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadConfig(path); err == nil {
		t.Fatal("expected missing url error")
	}

	if _, err := ReadConfig(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected read error")
	}
}
