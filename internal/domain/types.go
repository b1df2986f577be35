package domain

import (
	"encoding/json"
	"time"
)

// SchemaSource is one schema document known to the schema repository.
type SchemaSource struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Content []byte `json:"-" yaml:"-"`
}

// TableInfo describes a compiled table for listings.
type TableInfo struct {
	Name   string      `json:"name"`
	Fields []FieldInfo `json:"fields"`
}

type FieldInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Kind string `json:"kind"`
}

type Run struct {
	ID            string          `json:"id"`
	SchemaName    string          `json:"schema_name"`
	SchemaHash    string          `json:"schema_hash"`
	ConfigHash    string          `json:"config_hash"`
	Sink          string          `json:"sink"`
	TopicTemplate string          `json:"topic_template"`
	Seed          int64           `json:"seed"`
	Status        RunStatus       `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Stats         json.RawMessage `json:"stats,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusStopped RunStatus = "stopped"
	RunStatusFailed  RunStatus = "failed"
)

// RunStats are the delivery counters of one production run.
type RunStats struct {
	Produced        int64            `json:"produced"`
	Delivered       int64            `json:"delivered"`
	Failed          int64            `json:"failed"`
	PerTable        map[string]int64 `json:"per_table"`
	DurationSeconds float64          `json:"duration_seconds"`
}

// ProduceRequest is the input of one production run.
type ProduceRequest struct {
	SchemaID         string        `json:"schema_id,omitempty"`
	SchemaPath       string        `json:"schema_path,omitempty"`
	Sink             string        `json:"sink"`
	BrokerConfig     string        `json:"broker_config,omitempty"`
	BrokerURL        string        `json:"broker_url,omitempty"`
	TopicTemplate    string        `json:"topic_template"`
	Limit            int64         `json:"limit,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	Seed             *int64        `json:"seed,omitempty"`
	Pace             bool          `json:"pace"`
	PaceSigma        *float64      `json:"pace_sigma,omitempty"`
	AutoCreateTopics bool          `json:"auto_create_topics,omitempty"`
	TopicReplicas    int           `json:"topic_replicas,omitempty"`
	Verbose          bool          `json:"verbose,omitempty"`
}

// Sigma returns the pacing spread, DefaultPaceSigma when unset. Zero is a
// fixed one-second interval.
func (r *ProduceRequest) Sigma() float64 {
	if r.PaceSigma == nil {
		return DefaultPaceSigma
	}
	return *r.PaceSigma
}

const (
	SinkNATS   = "nats"
	SinkStdout = "stdout"

	DefaultTopicTemplate = "{name}"
	DefaultPaceSigma     = 0.2
)
