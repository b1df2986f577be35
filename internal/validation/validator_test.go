package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmrzaf/mockstream/internal/domain"
)

func TestIsValidIdentifier(t *testing.T) {
	ok := []string{"a", "A", "_a", "a1", "a_b2", "client-events", "select"}
	bad := []string{"", "1a", "a b", "a;b", "a\"b", "a.b", "a/b", "-a"}

	for _, s := range ok {
		if !IsValidIdentifier(s) {
			t.Fatalf("expected valid: %q", s)
		}
	}
	for _, s := range bad {
		if IsValidIdentifier(s) {
			t.Fatalf("expected invalid: %q", s)
		}
	}
}

func TestRenderTopic(t *testing.T) {
	if got := RenderTopic("{name}", "client"); got != "client" {
		t.Fatalf("got %q", got)
	}
	if got := RenderTopic("mock.{name}.v1", "event"); got != "mock.event.v1" {
		t.Fatalf("got %q", got)
	}
	if got := RenderTopic("all", "event"); got != "all" {
		t.Fatalf("got %q", got)
	}
}

func TestValidateTopic(t *testing.T) {
	for _, s := range []string{"client", "mock.client", "a-b_c.D1"} {
		if err := ValidateTopic(s); err != nil {
			t.Fatalf("%q: %v", s, err)
		}
	}
	for _, s := range []string{"", "a..b", ".a", "a.", "a.*", "a.>", "a b", "a\tb", strings.Repeat("x", 256)} {
		if err := ValidateTopic(s); !errors.Is(err, ErrInvalidTopic) {
			t.Fatalf("%q: expected ErrInvalidTopic, got %v", s, err)
		}
	}
}

func TestValidateTopicTemplate(t *testing.T) {
	tables := []string{"client", "event"}
	if err := ValidateTopicTemplate("mock.{name}", tables); err != nil {
		t.Fatal(err)
	}
	if err := ValidateTopicTemplate("firehose", tables); err != nil {
		t.Fatal(err)
	}
	if err := ValidateTopicTemplate("", tables); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
	if err := ValidateTopicTemplate("mock.{table}", tables); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
	err := ValidateTopicTemplate("mock.{name}", []string{"client", "bad table"})
	if !errors.Is(err, ErrInvalidTopic) || !strings.Contains(err.Error(), "bad table") {
		t.Fatalf("expected topic error naming the table, got %v", err)
	}
}

func TestStreamName(t *testing.T) {
	got, err := StreamName("mock.client")
	if err != nil || got != "mock_client" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := StreamName("mock.*"); err == nil {
		t.Fatal("expected wildcard topic to be rejected")
	}
}

func TestValidateProduceRequest(t *testing.T) {
	valid := domain.ProduceRequest{
		SchemaID:      "tables",
		Sink:          domain.SinkNATS,
		BrokerURL:     "nats://127.0.0.1:4222",
		TopicTemplate: "{name}",
		Limit:         10,
		Duration:      time.Second,
	}
	if err := ValidateProduceRequest(&valid); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	mutations := map[string]func(r *domain.ProduceRequest){
		"no schema":        func(r *domain.ProduceRequest) { r.SchemaID = "" },
		"both schemas":     func(r *domain.ProduceRequest) { r.SchemaPath = "x.yaml" },
		"bad schema id":    func(r *domain.ProduceRequest) { r.SchemaID = "../etc" },
		"no sink":          func(r *domain.ProduceRequest) { r.Sink = "" },
		"unknown sink":     func(r *domain.ProduceRequest) { r.Sink = "kafka" },
		"nats without url": func(r *domain.ProduceRequest) { r.BrokerURL = "" },
		"no template":      func(r *domain.ProduceRequest) { r.TopicTemplate = "" },
		"negative limit":   func(r *domain.ProduceRequest) { r.Limit = -1 },
		"negative dur":     func(r *domain.ProduceRequest) { r.Duration = -time.Second },
		"negative sigma": func(r *domain.ProduceRequest) {
			sigma := -0.1
			r.PaceSigma = &sigma
		},
	}
	for name, mutate := range mutations {
		req := valid
		mutate(&req)
		if err := ValidateProduceRequest(&req); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	stdout := valid
	stdout.Sink = domain.SinkStdout
	stdout.BrokerURL = ""
	if err := ValidateProduceRequest(&stdout); err != nil {
		t.Fatalf("stdout sink needs no broker: %v", err)
	}
}
