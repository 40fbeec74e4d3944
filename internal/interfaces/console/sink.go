package console

import (
	"io"
	"os"
	"sync"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

// Sink prints results to stdout. Markets finish concurrently, so writes are serialized.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
	fmt *Formatter
}

func NewSink(color bool) port.Sink { return NewSinkTo(os.Stdout, color) }

func NewSinkTo(w io.Writer, color bool) *Sink {
	return &Sink{out: w, fmt: &Formatter{Color: color}}
}

func (s *Sink) WriteResult(res *model.MarketResult) error {
	line := s.fmt.RenderResult(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, line)
	return err
}

func (s *Sink) WriteSummary(run port.RunSummary) error {
	line := s.fmt.RenderSummary(run)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, line)
	return err
}
