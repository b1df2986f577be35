package stdout

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
)

// Sink writes one "key<TAB>value" line per record. Topics are ignored.
type Sink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func New(w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{w: bufio.NewWriter(w)}
}

func (s *Sink) Connect(ctx context.Context) error { return nil }

func (s *Sink) EnsureTopic(ctx context.Context, topic string) error { return nil }

func (s *Sink) Publish(ctx context.Context, topic, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.WriteString(key); err != nil {
		return err
	}
	if err := s.w.WriteByte('\t'); err != nil {
		return err
	}
	if _, err := s.w.Write(value); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *Sink) Close() error {
	return s.Flush(context.Background())
}
