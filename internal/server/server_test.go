package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/pipeline"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/internal/telemetry"
)

type fakeRunner struct {
	mu   sync.Mutex
	out  pipeline.Outcome
	reqs []pipeline.Request
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) pipeline.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out
}

func (f *fakeRunner) calls() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Active(context.Context) (int, error) { return f.n, f.err }

func newTestServer(cfg config.ServerConfig, runner Runner) *Server {
	if cfg.Secret == "" && cfg.SecretHash == "" {
		cfg.Secret = "s3cret"
	}
	cfg.BodyLimit = "1M"
	return New(cfg, runner, fakeCounter{n: 2}, telemetry.New(), nil)
}

func postQuiz(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, QuizResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/quiz", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var resp QuizResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestSolveQuizSuccess(t *testing.T) {
	runner := &fakeRunner{out: pipeline.Outcome{
		SessionID: "sess-1",
		State:     quiz.StateAnswered,
		Answer:    "60",
		Strategy:  "file",
	}}
	s := newTestServer(config.ServerConfig{}, runner)

	rec, resp := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q1","secret":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Answer != "60" || resp.Status != "success" || resp.SessionID != "sess-1" || resp.Strategy != "file" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	calls := runner.calls()
	if len(calls) != 1 || calls[0].URL != "https://quiz.example/q1" || calls[0].Email != "a@b.c" || calls[0].Secret != "s3cret" {
		t.Fatalf("runner calls = %+v", calls)
	}
}

func TestSolveQuizRejectsWrongSecret(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(config.ServerConfig{}, runner)

	rec, resp := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q1","secret":"nope"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	if resp.Status != "error" || resp.Message != "Unauthorized" || resp.Answer != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(runner.calls()) != 0 {
		t.Fatalf("pipeline ran for an unauthorized request")
	}
}

func TestSolveQuizBcryptSecret(t *testing.T) {
	hash, err := HashSecret("hashed-secret")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	runner := &fakeRunner{out: pipeline.Outcome{State: quiz.StateAnswered, Answer: "ok"}}
	s := newTestServer(config.ServerConfig{SecretHash: hash}, runner)

	if rec, _ := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q","secret":"hashed-secret"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if rec, _ := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q","secret":"wrong"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestSolveQuizBadRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"invalid json", `{"email":`, http.StatusBadRequest, "invalid JSON body"},
		{"missing url", `{"email":"a@b.c","secret":"s3cret"}`, http.StatusBadRequest, "url is required"},
		{"missing email", `{"url":"https://quiz.example/q","secret":"s3cret"}`, http.StatusBadRequest, "email is required"},
		{"relative url", `{"email":"a@b.c","url":"/q","secret":"s3cret"}`, http.StatusBadRequest, "url must be an absolute http(s) URL"},
		{"wrong secret before validation", `{"email":"a@b.c","secret":"wrong"}`, http.StatusForbidden, "Unauthorized"},
		{"no secret and no url", `{}`, http.StatusForbidden, "Unauthorized"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := newTestServer(config.ServerConfig{}, runner)
			rec, resp := postQuiz(t, s, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d got %d", tt.wantStatus, rec.Code)
			}
			if resp.Status != "error" || resp.Message != tt.wantMsg {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if len(runner.calls()) != 0 {
				t.Fatalf("pipeline ran for a bad request")
			}
		})
	}
}

func TestSolveQuizDefaultEmail(t *testing.T) {
	runner := &fakeRunner{out: pipeline.Outcome{State: quiz.StateAnswered, Answer: "x"}}
	s := newTestServer(config.ServerConfig{DefaultEmail: "default@quiz.example"}, runner)

	rec, _ := postQuiz(t, s, `{"url":"https://quiz.example/q","secret":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if calls := runner.calls(); len(calls) != 1 || calls[0].Email != "default@quiz.example" {
		t.Fatalf("runner calls = %+v", calls)
	}
}

func TestSolveQuizErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{quiz.ErrSessionTimeout, http.StatusRequestTimeout, "SessionTimeout"},
		{quiz.ErrRenderTimeout, http.StatusRequestTimeout, "RenderTimeout"},
		{quiz.ErrNoQuestionFound, http.StatusUnprocessableEntity, "NoQuestionFound"},
		{quiz.ErrRender, http.StatusBadGateway, "RenderError"},
		{quiz.ErrProvider, http.StatusBadGateway, "ProviderError"},
		{quiz.ErrSolverTimeout, http.StatusBadGateway, "SolverTimeout"},
		{errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{out: pipeline.Outcome{
				SessionID: "sess-9",
				State:     quiz.StateFailed,
				Err:       fmt.Errorf("%w: detail", tt.err),
			}}
			s := newTestServer(config.ServerConfig{}, runner)
			rec, resp := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q","secret":"s3cret"}`)
			if rec.Code != tt.code {
				t.Fatalf("expected status %d got %d", tt.code, rec.Code)
			}
			if resp.Status != "error" || resp.Code != tt.name || resp.SessionID != "sess-9" || resp.Answer != "" {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestSolveQuizKeepsSubmission(t *testing.T) {
	runner := &fakeRunner{out: pipeline.Outcome{
		State:      quiz.StateAnswered,
		Answer:     "42",
		Submission: &pipeline.Submission{URL: "https://quiz.example/submit", StatusCode: 500, Error: "status 500"},
	}}
	s := newTestServer(config.ServerConfig{}, runner)
	rec, resp := postQuiz(t, s, `{"email":"a@b.c","url":"https://quiz.example/q","secret":"s3cret"}`)
	if rec.Code != http.StatusOK || resp.Answer != "42" {
		t.Fatalf("unexpected response %d: %+v", rec.Code, resp)
	}
	if resp.Submission == nil || resp.Submission.StatusCode != 500 {
		t.Fatalf("submission = %+v", resp.Submission)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(config.ServerConfig{}, &fakeRunner{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.ActiveSessions != 2 || resp.Uptime == "" {
		t.Fatalf("unexpected health: %+v", resp)
	}

	degraded := New(config.ServerConfig{Secret: "x"}, &fakeRunner{}, fakeCounter{err: errors.New("redis down")}, nil, nil)
	rec = httptest.NewRecorder()
	degraded.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(config.ServerConfig{}, &fakeRunner{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "quizsolver_active_sessions") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(config.ServerConfig{Address: "127.0.0.1:0"}, &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
