package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mmrzaf/mockstream/internal/domain"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/schema"
	"github.com/mmrzaf/mockstream/internal/validation"
)

// Sink is a destination for encoded records.
type Sink interface {
	Connect(ctx context.Context) error
	// EnsureTopic creates topic if the broker needs it to exist.
	EnsureTopic(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic, key string, value []byte) error
	// Flush blocks until everything published so far was accepted by the
	// broker.
	Flush(ctx context.Context) error
	Close() error
}

const defaultFlushEvery = 500

type Config struct {
	TopicTemplate    string
	Limit            int64
	Duration         time.Duration
	Pace             bool
	// PaceSigma is the log-normal spread; nil means DefaultPaceSigma and 0
	// a fixed one-second interval.
	PaceSigma        *float64
	Verbose          bool
	AutoCreateTopics bool
	// FlushEvery bounds the number of unconfirmed records.
	FlushEvery int
	// PaceSeed seeds the pacing source. Pacing never draws from the
	// schema's source, so record sequences do not depend on it.
	PaceSeed *int64
}

type Producer struct {
	sink   Sink
	cfg    Config
	logger *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(sink Sink, cfg Config, logger *logging.Logger) *Producer {
	if cfg.TopicTemplate == "" {
		cfg.TopicTemplate = domain.DefaultTopicTemplate
	}
	if cfg.PaceSigma == nil {
		sigma := domain.DefaultPaceSigma
		cfg.PaceSigma = &sigma
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Producer{
		sink:   sink,
		cfg:    cfg,
		logger: logger.WithComponent("producer"),
		sleep:  sleepCtx,
	}
}

type tableTopic struct {
	table *schema.Table
	topic string
}

// Run publishes one record per table in declaration order, round after
// round, until ctx is done, the limit is reached or the duration elapses.
// Stopping through ctx is not an error.
func (p *Producer) Run(ctx context.Context, tables []*schema.Table) (*domain.RunStats, error) {
	if len(tables) == 0 {
		return nil, errors.New("no tables to produce")
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	if err := validation.ValidateTopicTemplate(p.cfg.TopicTemplate, names); err != nil {
		return nil, err
	}
	targets := make([]tableTopic, len(tables))
	for i, t := range tables {
		targets[i] = tableTopic{table: t, topic: validation.RenderTopic(p.cfg.TopicTemplate, t.Name)}
	}

	if err := p.sink.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to sink: %w", err)
	}
	defer p.sink.Close()

	if p.cfg.AutoCreateTopics {
		for _, tt := range targets {
			if err := p.sink.EnsureTopic(ctx, tt.topic); err != nil {
				return nil, fmt.Errorf("failed to create topic %s: %w", tt.topic, err)
			}
			p.logger.Infow("topic.ensured", map[string]any{"topic": tt.topic})
		}
	}

	if p.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Duration)
		defer cancel()
	}

	pace := rand.New(rand.NewSource(p.paceSeed()))
	stats := &domain.RunStats{PerTable: make(map[string]int64, len(tables))}
	var pending int64
	start := time.Now()

	flush := func(fctx context.Context) error {
		if pending == 0 {
			return nil
		}
		if err := p.sink.Flush(fctx); err != nil {
			stats.Failed += pending
			pending = 0
			return err
		}
		stats.Delivered += pending
		pending = 0
		return nil
	}

loop:
	for {
		for _, tt := range targets {
			if ctx.Err() != nil || (p.cfg.Limit > 0 && stats.Produced >= p.cfg.Limit) {
				break loop
			}

			rec := tt.table.GenerateValue()
			value, err := json.Marshal(rec)
			if err != nil {
				return stats, fmt.Errorf("table '%s': encode record: %w", tt.table.Name, err)
			}
			if p.cfg.Verbose {
				p.logger.Infow("record.produced", map[string]any{
					"topic": tt.topic,
					"key":   tt.table.Name,
					"value": string(value),
				})
			}

			stats.Produced++
			stats.PerTable[tt.table.Name]++
			if err := p.sink.Publish(ctx, tt.topic, tt.table.Name, value); err != nil {
				stats.Failed++
				p.logger.Errorw("record.delivery_failed", map[string]any{
					"topic": tt.topic,
					"key":   tt.table.Name,
					"error": err,
				})
			} else {
				pending++
			}

			if pending >= int64(p.cfg.FlushEvery) {
				if err := flush(ctx); err != nil && ctx.Err() == nil {
					p.logger.Errorw("sink.flush_failed", map[string]any{"error": err})
				}
			}

			if p.cfg.Pace {
				if err := p.sleep(ctx, LogNormalInterval(pace, *p.cfg.PaceSigma)); err != nil {
					break loop
				}
			}
		}
	}

	// ctx may already be done; the final flush gets its own deadline.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	flushErr := flush(fctx)
	stats.DurationSeconds = time.Since(start).Seconds()

	p.logger.Infow("producer.stopped", map[string]any{
		"produced":  stats.Produced,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
	})
	if flushErr != nil {
		return stats, fmt.Errorf("failed to flush sink: %w", flushErr)
	}
	return stats, nil
}

func (p *Producer) paceSeed() int64 {
	if p.cfg.PaceSeed != nil {
		return *p.cfg.PaceSeed
	}
	return time.Now().UnixNano()
}

// LogNormalInterval draws exp(N(0, sigma)) seconds.
func LogNormalInterval(rng *rand.Rand, sigma float64) time.Duration {
	secs := math.Exp(rng.NormFloat64() * sigma)
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
