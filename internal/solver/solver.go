// Package solver asks the configured LLM for an answer.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/provider"
)

const systemPrompt = `You solve data analysis quiz questions.
Reply with the answer only: no explanation, no units unless asked, no surrounding quotes.
If the answer is a number, write just the number.`

const visualizationHint = `The question is about a chart or visualisation. Answer with the chart type, value or description asked for, in as few words as possible.`

// SolveRequest is one question plus whatever material the caller gathered.
type SolveRequest struct {
	Question string
	Kind     quiz.Kind
	Context  string
}

type Solver struct {
	provider   provider.TextCompletionProvider
	timeout    time.Duration
	maxContext int
	logger     *zap.Logger
}

func New(p provider.TextCompletionProvider, timeout time.Duration, maxContext int, logger *zap.Logger) *Solver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{provider: p, timeout: timeout, maxContext: maxContext, logger: logger.Named("solver")}
}

// Solve returns the model's trimmed reply. A deadline maps to
// ErrSolverTimeout, every other failure to ErrProvider.
func (s *Solver) Solve(ctx context.Context, req SolveRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p := provider.Prompt{System: systemPrompt, User: s.userPrompt(req)}
	if req.Kind == quiz.KindVisualization {
		p.System += "\n" + visualizationHint
	}

	start := time.Now()
	out, err := s.provider.Complete(ctx, p)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %s", quiz.ErrSolverTimeout, s.provider.Name(), s.timeout)
		}
		return "", fmt.Errorf("%w: %s: %v", quiz.ErrProvider, s.provider.Name(), err)
	}
	out = helpers.StripCodeFence(out)
	s.logger.Debug("completion",
		zap.String("provider", s.provider.Name()),
		zap.Duration("took", time.Since(start)),
		zap.Int("context_chars", len(req.Context)))
	if out == "" {
		return "", fmt.Errorf("%w: %s returned an empty answer", quiz.ErrProvider, s.provider.Name())
	}
	return out, nil
}

func (s *Solver) userPrompt(req SolveRequest) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(req.Question))
	if c := strings.TrimSpace(req.Context); c != "" {
		c = helpers.Truncate(c, s.maxContext)
		b.WriteString("\n\nContext:\n")
		b.WriteString(c)
	}
	return b.String()
}
