// Package pipeline runs one quiz session end to end: render, extract,
// dispatch, solve and optionally submit. Every stage is attempted once and
// the whole run is bound to the session deadline.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/dispatcher"
	"github.com/mohammad-safakhou/quizsolver/internal/extractor"
	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/internal/solver"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy"
	"github.com/mohammad-safakhou/quizsolver/internal/telemetry"
	"github.com/mohammad-safakhou/quizsolver/session"
	"github.com/mohammad-safakhou/quizsolver/tools/render"
)

// Solver is the LLM entry point used for generic questions and fallbacks.
type Solver interface {
	Solve(ctx context.Context, req solver.SolveRequest) (string, error)
}

// Request starts a session.
type Request struct {
	URL    string
	Email  string
	Secret string
}

// Submission reports the optional answer submission.
type Submission struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Response   any    `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Outcome is the single final result of a session.
type Outcome struct {
	SessionID    string
	State        quiz.State
	Answer       string
	Value        any
	Strategy     string
	FallbackFrom string
	Err          error
	Submission   *Submission
}

// Succeeded reports whether the session ended answered.
func (o Outcome) Succeeded() bool { return o.State == quiz.StateAnswered }

type Options struct {
	SessionTimeout time.Duration
	SubmitEnabled  bool
	SubmitURL      string // used when the page names no submit URL
}

type Deps struct {
	Renderer   render.Renderer
	Extractor  *extractor.Extractor
	Dispatcher *dispatcher.Dispatcher
	Strategies []strategy.Strategy
	Solver     Solver
	Store      session.Store
	HTTP       *httpclient.Client
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
}

type Pipeline struct {
	renderer   render.Renderer
	extractor  *extractor.Extractor
	dispatcher *dispatcher.Dispatcher
	strategies map[string]strategy.Strategy
	solver     Solver
	store      session.Store
	http       *httpclient.Client
	metrics    *telemetry.Metrics
	opts       Options
	logger     *zap.Logger
}

func New(d Deps, opts Options) *Pipeline {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 180 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := d.Extractor
	if ext == nil {
		ext = extractor.New()
	}
	strategies := make(map[string]strategy.Strategy, len(d.Strategies))
	for _, s := range d.Strategies {
		strategies[s.Name()] = s
	}
	return &Pipeline{
		renderer:   d.Renderer,
		extractor:  ext,
		dispatcher: d.Dispatcher,
		strategies: strategies,
		solver:     d.Solver,
		store:      d.Store,
		http:       d.HTTP,
		metrics:    d.Metrics,
		opts:       opts,
		logger:     logger.Named("pipeline"),
	}
}

// run carries the per-session state through the stages.
type run struct {
	p        *Pipeline
	ctx      context.Context
	sess     quiz.Session
	deadline time.Time
	log      *zap.Logger
}

// Run solves the quiz at req.URL. It always returns exactly one outcome in a
// terminal state; the session is removed from the registry before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) Outcome {
	sess, err := p.store.Start(ctx, req.URL, req.Email, p.opts.SessionTimeout)
	if err != nil {
		p.logger.Error("session start failed", zap.Error(err))
		return Outcome{State: quiz.StateFailed, Err: fmt.Errorf("start session: %w", err)}
	}
	record := p.metrics.SessionStarted()

	runCtx, cancel := context.WithDeadline(ctx, sess.Deadline)
	defer cancel()

	r := &run{p: p, ctx: runCtx, sess: sess, deadline: sess.Deadline,
		log: p.logger.With(zap.String("session_id", sess.ID), zap.String("url", req.URL))}
	r.log.Info("session started", zap.Time("deadline", sess.Deadline))

	out := r.execute(req)
	out.SessionID = sess.ID

	final := quiz.StateAnswered
	if out.Err != nil {
		final = quiz.StateFailed
	}
	// the run context may already be past its deadline
	bg := context.WithoutCancel(ctx)
	if _, err := p.store.Transition(bg, sess.ID, final); err != nil {
		r.log.Warn("final transition not recorded", zap.String("state", string(final)), zap.Error(err))
	}
	out.State = final
	if err := p.store.Complete(bg, sess.ID); err != nil {
		r.log.Warn("session removal failed", zap.Error(err))
	}
	record(string(final))

	if out.Err != nil {
		r.log.Warn("session failed", zap.String("code", quiz.Code(out.Err)), zap.Error(out.Err))
	} else {
		r.log.Info("session answered", zap.String("strategy", out.Strategy), zap.String("answer", out.Answer))
	}
	return out
}

func (r *run) execute(req Request) Outcome {
	p := r.p

	if err := r.enter(quiz.StateRendering); err != nil {
		return Outcome{Err: err}
	}
	start := time.Now()
	page, err := p.renderer.Render(r.ctx, req.URL)
	p.metrics.ObserveStage("render", time.Since(start))
	if err != nil {
		return Outcome{Err: r.classify(err)}
	}
	r.log.Debug("rendered", zap.Int("html_bytes", len(page.HTML)), zap.Int("render_ms", page.RenderMS))

	if err := r.enter(quiz.StateExtracting); err != nil {
		return Outcome{Err: err}
	}
	start = time.Now()
	ext := p.extractor.Extract(page)
	p.metrics.ObserveStage("extract", time.Since(start))
	if len(ext.Questions) == 0 {
		return Outcome{Err: fmt.Errorf("%w: %s", quiz.ErrNoQuestionFound, req.URL)}
	}

	if err := r.enter(quiz.StateDispatching); err != nil {
		return Outcome{Err: err}
	}
	primary, strategyName := p.dispatcher.Route(ext.Questions[0])
	pageContext := otherQuestions(ext.Questions[1:])
	r.log.Info("dispatched",
		zap.String("kind", string(primary.Kind)),
		zap.String("strategy", strategyName),
		zap.Int("questions", len(ext.Questions)))

	if err := r.enter(quiz.StateSolving); err != nil {
		return Outcome{Err: err}
	}
	start = time.Now()
	out := r.solve(primary, strategyName, pageContext)
	p.metrics.ObserveStage("solve", time.Since(start))
	if out.Err != nil {
		out.Err = r.classify(out.Err)
		return out
	}

	if p.opts.SubmitEnabled {
		target := ext.SubmitURL
		if target == "" {
			target = p.opts.SubmitURL
		}
		if target != "" {
			out.Submission = r.submit(target, req, out.Answer)
		}
	}
	return out
}

// enter records a transition, failing the run when the deadline has passed.
func (r *run) enter(state quiz.State) error {
	if err := r.ctx.Err(); err != nil {
		return r.classify(err)
	}
	if _, err := r.p.store.Transition(r.ctx, r.sess.ID, state); err != nil {
		return r.classify(fmt.Errorf("transition to %s: %w", state, err))
	}
	return nil
}

// classify turns any failure that happened after the session deadline into
// ErrSessionTimeout.
func (r *run) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, quiz.ErrSessionTimeout) {
		return err
	}
	if !time.Now().Before(r.deadline) || errors.Is(r.ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", quiz.ErrSessionTimeout, err)
	}
	return err
}

func (r *run) solve(q quiz.Question, strategyName, pageContext string) Outcome {
	p := r.p
	s, ok := p.strategies[strategyName]
	if !ok {
		return r.generic(q, joinContext(q.InlineData, pageContext), "")
	}

	res := s.Solve(r.ctx, q)
	p.metrics.StrategyResult(res.Strategy, string(res.Status))
	if res.Status == quiz.StatusOK {
		return Outcome{Answer: res.Answer(), Value: res.Value, Strategy: res.Strategy}
	}

	r.log.Info("strategy undetermined, falling back to llm",
		zap.String("strategy", res.Strategy),
		zap.String("code", quiz.Code(res.Err)),
		zap.NamedError("cause", res.Err))
	if res.Err != nil && quiz.IsTerminal(res.Err) {
		return Outcome{Strategy: res.Strategy, Err: res.Err}
	}
	ctxText := res.Context
	if ctxText == "" {
		ctxText = q.InlineData
	}
	return r.generic(q, joinContext(ctxText, pageContext), res.Strategy)
}

func (r *run) generic(q quiz.Question, ctxText, fallbackFrom string) Outcome {
	p := r.p
	answer, err := p.solver.Solve(r.ctx, solver.SolveRequest{Question: q.Text, Kind: q.Kind, Context: ctxText})
	status := quiz.StatusOK
	if err != nil {
		status = quiz.StatusUndetermined
	}
	p.metrics.StrategyResult(dispatcher.StrategyGeneric, string(status))
	if err != nil {
		return Outcome{Strategy: dispatcher.StrategyGeneric, FallbackFrom: fallbackFrom, Err: err}
	}
	return Outcome{Answer: answer, Value: answer, Strategy: dispatcher.StrategyGeneric, FallbackFrom: fallbackFrom}
}

// submit posts the answer once. Failures are reported, never retried, and do
// not change the answer.
func (r *run) submit(target string, req Request, answer string) *Submission {
	sub := &Submission{URL: target}
	if r.p.http == nil {
		sub.Error = "no http client configured"
		return sub
	}
	payload, err := json.Marshal(map[string]any{
		"email":  req.Email,
		"secret": req.Secret,
		"url":    req.URL,
		"answer": quiz.CoerceAnswer(answer),
	})
	if err != nil {
		sub.Error = err.Error()
		return sub
	}
	resp, err := r.p.http.Do(r.ctx, http.MethodPost, target,
		map[string]string{"Content-Type": "application/json"}, bytes.NewReader(payload))
	if resp != nil {
		sub.StatusCode = resp.StatusCode
		var decoded any
		if json.Unmarshal(resp.Body, &decoded) == nil {
			sub.Response = decoded
		} else if len(resp.Body) > 0 {
			sub.Response = strings.TrimSpace(string(resp.Body))
		}
	}
	if err != nil {
		sub.Error = err.Error()
		r.log.Warn("submission failed", zap.String("submit_url", target), zap.Error(err))
		return sub
	}
	r.log.Info("answer submitted", zap.String("submit_url", target), zap.Int("status", resp.StatusCode))
	return sub
}

func otherQuestions(qs []quiz.Question) string {
	if len(qs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		parts = append(parts, q.Text)
	}
	return "Other content on the page:\n" + strings.Join(parts, "\n\n")
}

func joinContext(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
