package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/mockstream/internal/domain"
)

type runConfigHashPayload struct {
	SchemaHash       string  `json:"schema_hash"`
	Sink             string  `json:"sink"`
	BrokerURL        string  `json:"broker_url,omitempty"`
	TopicTemplate    string  `json:"topic_template"`
	Limit            int64   `json:"limit"`
	DurationMS       int64   `json:"duration_ms"`
	Pace             bool    `json:"pace"`
	PaceSigma        float64 `json:"pace_sigma"`
	AutoCreateTopics bool    `json:"auto_create_topics"`
	Seed             int64   `json:"seed"`
}

// HashRunConfig fingerprints everything that decides what a run publishes
// and where. Broker credentials are not part of it.
func HashRunConfig(schemaHash string, req *domain.ProduceRequest, seed int64) (string, error) {
	p := runConfigHashPayload{
		SchemaHash:       schemaHash,
		Sink:             req.Sink,
		BrokerURL:        req.BrokerURL,
		TopicTemplate:    req.TopicTemplate,
		Limit:            req.Limit,
		DurationMS:       req.Duration.Milliseconds(),
		Pace:             req.Pace,
		PaceSigma:        req.Sigma(),
		AutoCreateTopics: req.AutoCreateTopics,
		Seed:             seed,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
