package natssink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/mmrzaf/mockstream/internal/infra/redact"
	"github.com/mmrzaf/mockstream/internal/logging"
	"github.com/mmrzaf/mockstream/internal/validation"
)

// KeyHeader carries the record key, which is the table name.
const KeyHeader = "Key"

// Config holds broker connection properties.
type Config struct {
	URL      string
	Name     string
	User     string
	Password string
	Token    string
	// Replicas is used for streams created by EnsureTopic.
	Replicas int
}

// ReadConfig loads broker properties from a key=value file. Lines starting
// with # are comments. Recognized keys are url, name, user, password, token
// and replicas; keys may also use the bootstrap.servers spelling for url.
func ReadConfig(path string) (Config, error) {
	props, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading broker config %s: %w", path, err)
	}
	cfg := Config{
		URL:      first(props, "url", "servers", "bootstrap.servers"),
		Name:     first(props, "name", "client.id"),
		User:     first(props, "user", "sasl.username"),
		Password: first(props, "password", "sasl.password"),
		Token:    props["token"],
	}
	if r := props["replicas"]; r != "" {
		n, err := strconv.Atoi(r)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("broker config %s: replicas must be a positive integer, got %q", path, r)
		}
		cfg.Replicas = n
	}
	if cfg.URL == "" {
		return Config{}, fmt.Errorf("broker config %s: url is required", path)
	}
	return cfg, nil
}

func first(props map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(props[k]); v != "" {
			return v
		}
	}
	return ""
}

// Sink publishes records to NATS subjects.
type Sink struct {
	cfg    Config
	logger *logging.Logger
	conn   *nats.Conn
	js     nats.JetStreamContext
}

func New(cfg Config, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Replicas < 1 {
		cfg.Replicas = 1
	}
	return &Sink{cfg: cfg, logger: logger.WithComponent("nats")}
}

func (s *Sink) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warnw("nats.disconnected", map[string]any{"error": err})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Infow("nats.reconnected", map[string]any{"url": redact.DSN(nc.ConnectedUrl())})
		}),
	}
	if s.cfg.Name != "" {
		opts = append(opts, nats.Name(s.cfg.Name))
	}
	if s.cfg.User != "" {
		opts = append(opts, nats.UserInfo(s.cfg.User, s.cfg.Password))
	}
	if s.cfg.Token != "" {
		opts = append(opts, nats.Token(s.cfg.Token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", redact.DSN(s.cfg.URL), err)
	}
	s.conn = nc
	s.logger.Infow("nats.connected", map[string]any{"url": redact.DSN(nc.ConnectedUrl())})
	return nil
}

// EnsureTopic makes sure a stream captures topic so that published records
// are retained. Plain subjects need no creation; this is only used when
// topic auto-creation is requested.
func (s *Sink) EnsureTopic(ctx context.Context, topic string) error {
	if s.conn == nil {
		return errors.New("nats sink is not connected")
	}
	if err := validation.ValidateTopic(topic); err != nil {
		return err
	}
	name, err := validation.StreamName(topic)
	if err != nil {
		return err
	}
	if s.js == nil {
		js, err := s.conn.JetStream()
		if err != nil {
			return fmt.Errorf("jetstream unavailable: %w", err)
		}
		s.js = js
	}

	if _, err := s.js.StreamInfo(name, nats.Context(ctx)); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("looking up stream %s: %w", name, err)
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{topic},
		Replicas: s.cfg.Replicas,
	}, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("creating stream %s: %w", name, err)
	}
	s.logger.Infow("nats.stream_created", map[string]any{"stream": name, "subject": topic})
	return nil
}

func (s *Sink) Publish(ctx context.Context, topic, key string, value []byte) error {
	if s.conn == nil {
		return errors.New("nats sink is not connected")
	}
	msg := &nats.Msg{
		Subject: topic,
		Header:  nats.Header{},
		Data:    value,
	}
	msg.Header.Set(KeyHeader, key)
	return s.conn.PublishMsg(msg)
}

// Flush waits for the server to acknowledge everything published so far.
func (s *Sink) Flush(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("nats sink is not connected")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.conn.FlushWithContext(ctx)
}

func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Close()
	s.conn = nil
	return nil
}
