package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mmrzaf/mockstream/internal/domain"
)

// NamePlaceholder is replaced by the table name when rendering a topic
// template.
const NamePlaceholder = "{name}"

var (
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrInvalidTemplate = errors.New("invalid topic template")
)

// identifier validation for schema IDs and table names used in URLs and
// stream names.
var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	streamRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

const maxTopicLen = 255

func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return identRe.MatchString(s)
}

// RenderTopic substitutes every {name} in tmpl with table.
func RenderTopic(tmpl, table string) string {
	return strings.ReplaceAll(tmpl, NamePlaceholder, table)
}

// ValidateTopic checks that topic can be published to: dot-separated
// non-empty tokens, no whitespace, no wildcards.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidTopic, topic, maxTopicLen)
	}
	for _, tok := range strings.Split(topic, ".") {
		if tok == "" {
			return fmt.Errorf("%w: %q has an empty token", ErrInvalidTopic, topic)
		}
		if tok == "*" || tok == ">" {
			return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
		}
	}
	for _, r := range topic {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidTopic, topic)
		}
	}
	return nil
}

// ValidateTopicTemplate renders tmpl for every table and validates the
// results. Two tables mapping to one topic is allowed only when the
// template has no placeholder.
func ValidateTopicTemplate(tmpl string, tables []string) error {
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("%w: template is required", ErrInvalidTemplate)
	}
	if strings.Count(tmpl, "{") != strings.Count(tmpl, NamePlaceholder) ||
		strings.Count(tmpl, "}") != strings.Count(tmpl, NamePlaceholder) {
		return fmt.Errorf("%w: %q: only %s may appear in braces", ErrInvalidTemplate, tmpl, NamePlaceholder)
	}
	for _, table := range tables {
		if err := ValidateTopic(RenderTopic(tmpl, table)); err != nil {
			return fmt.Errorf("table '%s': %w", table, err)
		}
	}
	return nil
}

// StreamName derives a stream name from a topic. Stream names may not
// contain dots or wildcards.
func StreamName(topic string) (string, error) {
	name := strings.ReplaceAll(topic, ".", "_")
	if !streamRe.MatchString(name) {
		return "", fmt.Errorf("%w: cannot derive stream name from %q", ErrInvalidTopic, topic)
	}
	return name, nil
}

func IsValidSink(s string) bool {
	switch s {
	case domain.SinkNATS, domain.SinkStdout:
		return true
	default:
		return false
	}
}

func ValidateProduceRequest(req *domain.ProduceRequest) error {
	hasID := req.SchemaID != ""
	hasPath := req.SchemaPath != ""

	if !hasID && !hasPath {
		return errors.New("either schema_id or schema_path must be provided")
	}
	if hasID && hasPath {
		return errors.New("only one of schema_id or schema_path must be provided")
	}
	if hasID && !IsValidIdentifier(req.SchemaID) {
		return fmt.Errorf("invalid schema_id: %s", req.SchemaID)
	}

	if req.Sink == "" {
		return errors.New("sink is required")
	}
	if !IsValidSink(req.Sink) {
		return fmt.Errorf("unsupported sink: %s", req.Sink)
	}
	if req.Sink == domain.SinkNATS && req.BrokerURL == "" && req.BrokerConfig == "" {
		return errors.New("nats sink requires broker_url or broker_config")
	}

	if req.TopicTemplate == "" {
		return errors.New("topic_template is required")
	}
	if req.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", req.Limit)
	}
	if req.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %s", req.Duration)
	}
	if req.PaceSigma != nil && *req.PaceSigma < 0 {
		return fmt.Errorf("pace_sigma must be >= 0, got %v", *req.PaceSigma)
	}
	return nil
}
