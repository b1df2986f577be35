package app

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mmrzaf/mockstream/internal/domain"
	"github.com/mmrzaf/mockstream/internal/hashing"
	"github.com/mmrzaf/mockstream/internal/infra/redact"
	"github.com/mmrzaf/mockstream/internal/infra/repos/runs"
	"github.com/mmrzaf/mockstream/internal/infra/repos/schemas"
	"github.com/mmrzaf/mockstream/internal/infra/sinks/natssink"
	"github.com/mmrzaf/mockstream/internal/infra/sinks/stdout"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/producer"
	"github.com/mmrzaf/mockstream/internal/registry"
	"github.com/mmrzaf/mockstream/internal/schema"
	"github.com/mmrzaf/mockstream/internal/validation"
)

// SinkFactory builds the sink a produce request asks for.
type SinkFactory func(req *domain.ProduceRequest) (producer.Sink, error)

type RunService struct {
	schemaRepo schemas.Repository
	runRepo    runs.Repository
	registry   *registry.TypeRegistry
	logger     *logging.Logger
	newSink    SinkFactory
}

func NewRunService(
	schemaRepo schemas.Repository,
	runRepo runs.Repository,
	typeRegistry *registry.TypeRegistry,
	logger *logging.Logger,
) *RunService {
	if typeRegistry == nil {
		typeRegistry = registry.DefaultTypeRegistry()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &RunService{
		schemaRepo: schemaRepo,
		runRepo:    runRepo,
		registry:   typeRegistry,
		logger:     logger.WithComponent("run_service"),
	}
	s.newSink = DefaultSinkFactory(logger)
	return s
}

// WithSinkFactory replaces how sinks are built.
func (s *RunService) WithSinkFactory(f SinkFactory) *RunService {
	s.newSink = f
	return s
}

func DefaultSinkFactory(logger *logging.Logger) SinkFactory {
	return func(req *domain.ProduceRequest) (producer.Sink, error) {
		switch req.Sink {
		case domain.SinkStdout:
			return stdout.New(os.Stdout), nil
		case domain.SinkNATS:
			cfg := natssink.Config{URL: req.BrokerURL}
			if req.BrokerConfig != "" {
				fileCfg, err := natssink.ReadConfig(req.BrokerConfig)
				if err != nil {
					return nil, err
				}
				if req.BrokerURL != "" {
					fileCfg.URL = req.BrokerURL
				}
				cfg = fileCfg
			}
			if req.TopicReplicas > 0 {
				cfg.Replicas = req.TopicReplicas
			}
			return natssink.New(cfg, logger), nil
		default:
			return nil, fmt.Errorf("unsupported sink: %s", req.Sink)
		}
	}
}

// LoadSchema resolves a schema by repository ID or file path.
func (s *RunService) LoadSchema(id, path string) (*domain.SchemaSource, error) {
	switch {
	case path != "":
		return schemas.ReadFile(path)
	case id != "":
		if s.schemaRepo == nil {
			return nil, errors.New("no schema repository configured")
		}
		return s.schemaRepo.Get(id)
	default:
		return nil, errors.New("either a schema id or a schema path is required")
	}
}

// Compile builds src with seed. Unrecognized options are logged, not fatal.
func (s *RunService) Compile(src *domain.SchemaSource, seed int64) (*schema.Schema, error) {
	compiled, err := schema.Compile(src.Content,
		schema.WithSeed(seed),
		schema.WithRegistry(s.registry),
		schema.WithLogger(s.logger.WithComponent("schema")),
	)
	if err != nil {
		return nil, fmt.Errorf("schema '%s': %w", src.Name, err)
	}
	return compiled, nil
}

// Describe lists the tables and fields of a schema.
func (s *RunService) Describe(src *domain.SchemaSource) ([]domain.TableInfo, []schema.Warning, error) {
	compiled, err := s.Compile(src, 0)
	if err != nil {
		return nil, nil, err
	}
	return DescribeTables(compiled), compiled.Warnings, nil
}

func DescribeTables(s *schema.Schema) []domain.TableInfo {
	out := make([]domain.TableInfo, 0, len(s.Tables))
	for _, t := range s.Tables {
		info := domain.TableInfo{Name: t.Name, Fields: make([]domain.FieldInfo, 0, len(t.Columns))}
		for _, c := range t.Columns {
			info.Fields = append(info.Fields, domain.FieldInfo{
				Name: c.Name(),
				Type: c.Type.String(),
				Kind: string(c.Kind()),
			})
		}
		out = append(out, info)
	}
	return out
}

// Sample generates n records of one table. A nil seed draws a fresh one.
func (s *RunService) Sample(src *domain.SchemaSource, table string, n int, seed *int64) ([]schema.Record, int64, error) {
	if n <= 0 {
		return nil, 0, fmt.Errorf("sample size must be > 0, got %d", n)
	}
	sd := generateSeed()
	if seed != nil {
		sd = *seed
	}
	compiled, err := s.Compile(src, sd)
	if err != nil {
		return nil, 0, err
	}
	t, ok := compiled.Table(table)
	if !ok {
		return nil, 0, fmt.Errorf("%w: table '%s' in schema '%s'", ErrTableNotFound, table, src.Name)
	}
	out := make([]schema.Record, n)
	for i := range out {
		out[i] = t.GenerateValue()
	}
	return out, sd, nil
}

var ErrTableNotFound = errors.New("table not found")

// Produce runs the producer to completion and records the run. A compile
// error fails before any run is recorded. Cancelling ctx stops the run
// gracefully and marks it stopped.
func (s *RunService) Produce(ctx context.Context, req *domain.ProduceRequest) (*domain.Run, error) {
	if req.TopicTemplate == "" {
		req.TopicTemplate = domain.DefaultTopicTemplate
	}
	if err := validation.ValidateProduceRequest(req); err != nil {
		return nil, fmt.Errorf("invalid produce request: %w", err)
	}

	src, err := s.LoadSchema(req.SchemaID, req.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	seed := generateSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	compiled, err := s.Compile(src, seed)
	if err != nil {
		return nil, err
	}

	schemaHash, err := hashing.HashSchema(compiled)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema: %w", err)
	}
	configHash, err := hashing.HashRunConfig(schemaHash, req, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to hash run config: %w", err)
	}

	sink, err := s.newSink(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build sink: %w", err)
	}

	run := &domain.Run{
		SchemaName:    src.Name,
		SchemaHash:    schemaHash,
		ConfigHash:    configHash,
		Sink:          req.Sink,
		TopicTemplate: req.TopicTemplate,
		Seed:          seed,
		Status:        domain.RunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if s.runRepo != nil {
		if err := s.runRepo.Create(run); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	s.logger.Infow("run.started", map[string]any{
		"run_id": run.ID,
		"schema": src.Name,
		"sink":   req.Sink,
		"broker": redact.DSN(req.BrokerURL),
		"topic":  req.TopicTemplate,
		"seed":   seed,
		"tables": len(compiled.Tables),
	})

	paceSeed := seed
	p := producer.New(sink, producer.Config{
		TopicTemplate:    req.TopicTemplate,
		Limit:            req.Limit,
		Duration:         req.Duration,
		Pace:             req.Pace,
		PaceSigma:        req.PaceSigma,
		Verbose:          req.Verbose,
		AutoCreateTopics: req.AutoCreateTopics,
		PaceSeed:         &paceSeed,
	}, s.logger)

	stats, runErr := p.Run(ctx, compiled.Tables)
	s.finish(ctx, run, stats, runErr)
	if runErr != nil {
		return run, runErr
	}
	return run, nil
}

func (s *RunService) finish(ctx context.Context, run *domain.Run, stats *domain.RunStats, runErr error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	switch {
	case runErr != nil:
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	case ctx.Err() != nil:
		run.Status = domain.RunStatusStopped
	default:
		run.Status = domain.RunStatusSuccess
	}
	if stats != nil {
		run.Stats, _ = json.Marshal(stats)
	}

	fields := map[string]any{"run_id": run.ID, "status": string(run.Status)}
	if stats != nil {
		fields["produced"] = stats.Produced
		fields["delivered"] = stats.Delivered
		fields["failed"] = stats.Failed
	}
	if runErr != nil {
		fields["error"] = runErr
		s.logger.Errorw("run.finished", fields)
	} else {
		s.logger.Infow("run.finished", fields)
	}

	if s.runRepo == nil {
		return
	}
	if err := s.runRepo.Update(run); err != nil {
		s.logger.Errorw("run.update_failed", map[string]any{"run_id": run.ID, "error": err})
	}
}

func (s *RunService) GetRun(id string) (*domain.Run, error) {
	return s.runRepo.Get(id)
}

func (s *RunService) ListRuns(limit int, status string) ([]*domain.Run, error) {
	return s.runRepo.List(limit, status)
}

func (s *RunService) ListSchemas() ([]*domain.SchemaSource, error) {
	return s.schemaRepo.List()
}

func generateSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
