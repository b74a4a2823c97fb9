package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/dispatcher"
	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/internal/solver"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/api"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/file"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/stat"
	"github.com/mohammad-safakhou/quizsolver/internal/telemetry"
	"github.com/mohammad-safakhou/quizsolver/session"
	"github.com/mohammad-safakhou/quizsolver/session/inmemory"
	"github.com/mohammad-safakhou/quizsolver/tools/render"
	"github.com/mohammad-safakhou/quizsolver/tools/render/models"
)

type fakeSolver struct {
	mu     sync.Mutex
	answer string
	err    error
	reqs   []solver.SolveRequest
}

func (f *fakeSolver) Solve(_ context.Context, req solver.SolveRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.answer, f.err
}

func (f *fakeSolver) calls() []solver.SolveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]solver.SolveRequest(nil), f.reqs...)
}

// recordingStore remembers every state a session was moved into.
type recordingStore struct {
	*inmemory.Store
	mu     sync.Mutex
	states []quiz.State
}

func (s *recordingStore) Transition(ctx context.Context, id string, to quiz.State) (quiz.Session, error) {
	s.mu.Lock()
	s.states = append(s.states, to)
	s.mu.Unlock()
	return s.Store.Transition(ctx, id, to)
}

func (s *recordingStore) terminalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.states {
		if st.Terminal() {
			n++
		}
	}
	return n
}

type submitCapture struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (c *submitCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newDataServer(t *testing.T, submitStatus int) (*httptest.Server, *submitCapture) {
	t.Helper()
	capture := &submitCapture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/data.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("id,amount\n1,10\n2,20\n3,30\n"))
	})
	mux.HandleFunc("/bundle.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04"))
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		capture.mu.Lock()
		capture.payloads = append(capture.payloads, payload)
		capture.mu.Unlock()
		w.WriteHeader(submitStatus)
		_, _ = w.Write([]byte(`{"correct":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, capture
}

func staticPage(html, text string) render.Renderer {
	return render.RendererFunc(func(_ context.Context, url string) (models.Page, error) {
		return models.Page{URL: url, HTML: html, Text: text}, nil
	})
}

func newPipeline(t *testing.T, r render.Renderer, s Solver, opts Options) (*Pipeline, *recordingStore) {
	t.Helper()
	store := &recordingStore{Store: inmemory.NewInMemorySessionStore(0)}
	t.Cleanup(func() { _ = store.Close() })
	client := httpclient.New(5*time.Second, 0, "quizsolver-test")
	p := New(Deps{
		Renderer:   r,
		Dispatcher: dispatcher.New(config.KeywordConfig{}),
		Strategies: []strategy.Strategy{
			file.New(client, 4000, nil),
			api.New(client, 4000, nil),
			stat.New(4000, nil),
		},
		Solver:  s,
		Store:   store,
		HTTP:    client,
		Metrics: telemetry.New(),
	}, opts)
	return p, store
}

func assertFinished(t *testing.T, store *recordingStore, out Outcome) {
	t.Helper()
	if store.terminalCount() != 1 {
		t.Fatalf("terminal transitions = %d, want exactly 1 (%v)", store.terminalCount(), store.states)
	}
	if n, _ := store.Active(context.Background()); n != 0 {
		t.Fatalf("active sessions = %d after run", n)
	}
	if _, err := store.Get(context.Background(), out.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session %s still registered: %v", out.SessionID, err)
	}
}

func TestRunFileQuestion(t *testing.T) {
	srv, _ := newDataServer(t, http.StatusOK)
	html := `<p>Q1. What is the sum of the amount column in <a href="/data.csv">this file</a>?</p>`
	text := "Q1. What is the sum of the amount column in this file?"
	llm := &fakeSolver{answer: "never"}
	p, store := newPipeline(t, staticPage(html, text), llm, Options{})

	out := p.Run(context.Background(), Request{URL: srv.URL + "/quiz", Email: "a@b.c"})
	if out.Err != nil {
		t.Fatalf("Run: %v", out.Err)
	}
	if out.Answer != "60" || out.Strategy != "file" || out.FallbackFrom != "" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.State != quiz.StateAnswered || !out.Succeeded() {
		t.Fatalf("state = %s", out.State)
	}
	if len(llm.calls()) != 0 {
		t.Fatalf("llm called for a deterministic answer")
	}
	want := []quiz.State{quiz.StateRendering, quiz.StateExtracting, quiz.StateDispatching, quiz.StateSolving, quiz.StateAnswered}
	if strings.Join(statesOf(store), ",") != strings.Join(stateStrings(want), ",") {
		t.Fatalf("states = %v, want %v", store.states, want)
	}
	assertFinished(t, store, out)
}

func TestRunUnsupportedFormatFallsBackToLLM(t *testing.T) {
	srv, _ := newDataServer(t, http.StatusOK)
	html := `<p>Download <a href="/bundle.zip">the bundle</a>. How many files does it hold?</p>`
	text := "Download the bundle. How many files does it hold?"
	llm := &fakeSolver{answer: "4"}
	p, store := newPipeline(t, staticPage(html, text), llm, Options{})

	out := p.Run(context.Background(), Request{URL: srv.URL + "/quiz"})
	if out.Err != nil {
		t.Fatalf("Run: %v", out.Err)
	}
	if out.Strategy != dispatcher.StrategyGeneric || out.FallbackFrom != "file" || out.Answer != "4" {
		t.Fatalf("outcome = %+v", out)
	}
	calls := llm.calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Question, "How many files") {
		t.Fatalf("llm calls = %+v", calls)
	}
	assertFinished(t, store, out)
}

func TestRunGenericQuestionGetsOtherQuestionsAsContext(t *testing.T) {
	text := "Q1. What is the capital of France?\nQ2. Ignore this one?"
	llm := &fakeSolver{answer: "Paris"}
	p, store := newPipeline(t, staticPage("<p>quiz</p>", text), llm, Options{})

	out := p.Run(context.Background(), Request{URL: "https://quiz.example/q"})
	if out.Err != nil || out.Answer != "Paris" || out.FallbackFrom != "" {
		t.Fatalf("outcome = %+v", out)
	}
	calls := llm.calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d", len(calls))
	}
	if !strings.Contains(calls[0].Question, "capital of France") {
		t.Fatalf("primary question = %q", calls[0].Question)
	}
	if !strings.Contains(calls[0].Context, "Ignore this one") {
		t.Fatalf("context = %q", calls[0].Context)
	}
	assertFinished(t, store, out)
}

func TestRunAPIFailureFallsBackToLLM(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("maintenance window until 18:00"))
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"up":true,"zone":"eu-west"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tests := []struct {
		name        string
		path        string
		wantContext string
	}{
		{"endpoint unreachable", "/api/down", "maintenance window until 18:00"},
		{"field not found", "/api/health", `{"up":true,"zone":"eu-west"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			text := "Q1. What is the latency reported by " + srv.URL + tt.path + "?"
			llm := &fakeSolver{answer: "120"}
			p, store := newPipeline(t, staticPage("<p>q</p>", text), llm, Options{})

			out := p.Run(context.Background(), Request{URL: srv.URL + "/quiz"})
			if out.Err != nil {
				t.Fatalf("Run: %v", out.Err)
			}
			if out.Strategy != dispatcher.StrategyGeneric || out.FallbackFrom != api.Name || out.Answer != "120" {
				t.Fatalf("outcome = %+v", out)
			}
			calls := llm.calls()
			if len(calls) != 1 {
				t.Fatalf("llm calls = %d", len(calls))
			}
			if !strings.Contains(calls[0].Context, tt.wantContext) {
				t.Fatalf("context = %q, want it to carry %q", calls[0].Context, tt.wantContext)
			}
			assertFinished(t, store, out)
		})
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name     string
		renderer render.Renderer
		solver   *fakeSolver
		want     error
	}{
		{
			name:     "no question",
			renderer: staticPage("<p>welcome</p>", "Welcome to the site"),
			solver:   &fakeSolver{},
			want:     quiz.ErrNoQuestionFound,
		},
		{
			name: "render error",
			renderer: render.RendererFunc(func(ctx context.Context, url string) (models.Page, error) {
				return models.Page{}, models.Classify(ctx, url, errors.New("net::ERR_NAME_NOT_RESOLVED"))
			}),
			solver: &fakeSolver{},
			want:   quiz.ErrRender,
		},
		{
			name:     "solver error is terminal",
			renderer: staticPage("<p>q</p>", "Who wrote Hamlet?"),
			solver:   &fakeSolver{err: quiz.ErrProvider},
			want:     quiz.ErrProvider,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p, store := newPipeline(t, tt.renderer, tt.solver, Options{})
			out := p.Run(context.Background(), Request{URL: "https://quiz.example/q"})
			if !errors.Is(out.Err, tt.want) {
				t.Fatalf("err = %v, want %v", out.Err, tt.want)
			}
			if out.State != quiz.StateFailed || out.Succeeded() {
				t.Fatalf("state = %s", out.State)
			}
			assertFinished(t, store, out)
		})
	}
}

func TestRunSessionTimeout(t *testing.T) {
	slow := render.RendererFunc(func(ctx context.Context, url string) (models.Page, error) {
		<-ctx.Done()
		return models.Page{}, models.Classify(ctx, url, ctx.Err())
	})
	p, store := newPipeline(t, slow, &fakeSolver{}, Options{SessionTimeout: 50 * time.Millisecond})

	start := time.Now()
	out := p.Run(context.Background(), Request{URL: "https://quiz.example/slow"})
	if !errors.Is(out.Err, quiz.ErrSessionTimeout) {
		t.Fatalf("err = %v, want session timeout", out.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run took %s", elapsed)
	}
	assertFinished(t, store, out)
}

func TestRunSubmitsOnce(t *testing.T) {
	srv, capture := newDataServer(t, http.StatusOK)
	html := `<p>Q1. What is the sum of the amount column in <a href="/data.csv">this file</a>?</p>`
	text := "Q1. What is the sum of the amount column in this file?\nPost your answer to " + srv.URL + "/submit"
	p, store := newPipeline(t, staticPage(html, text), &fakeSolver{}, Options{SubmitEnabled: true})

	out := p.Run(context.Background(), Request{URL: srv.URL + "/quiz", Email: "a@b.c", Secret: "s3cret"})
	if out.Err != nil || out.Answer != "60" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Submission == nil || out.Submission.StatusCode != http.StatusOK || out.Submission.Error != "" {
		t.Fatalf("submission = %+v", out.Submission)
	}
	if capture.count() != 1 {
		t.Fatalf("submissions = %d, want 1", capture.count())
	}
	got := capture.payloads[0]
	if got["email"] != "a@b.c" || got["secret"] != "s3cret" || got["url"] != srv.URL+"/quiz" {
		t.Fatalf("payload = %v", got)
	}
	if got["answer"] != float64(60) {
		t.Fatalf("answer = %#v, want numeric 60", got["answer"])
	}
	assertFinished(t, store, out)
}

func TestRunSubmissionFailureKeepsAnswer(t *testing.T) {
	srv, capture := newDataServer(t, http.StatusInternalServerError)
	html := `<p>Q1. What is the sum of the amount column in <a href="/data.csv">this file</a>?</p>`
	text := "Q1. What is the sum of the amount column in this file?"
	p, store := newPipeline(t, staticPage(html, text), &fakeSolver{},
		Options{SubmitEnabled: true, SubmitURL: srv.URL + "/submit"})

	out := p.Run(context.Background(), Request{URL: srv.URL + "/quiz"})
	if out.Err != nil || out.Answer != "60" || out.State != quiz.StateAnswered {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Submission == nil || out.Submission.Error == "" || out.Submission.StatusCode != http.StatusInternalServerError {
		t.Fatalf("submission = %+v", out.Submission)
	}
	if capture.count() != 1 {
		t.Fatalf("submissions = %d, want exactly one attempt", capture.count())
	}
	assertFinished(t, store, out)
}

func statesOf(s *recordingStore) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateStrings(s.states)
}

func stateStrings(states []quiz.State) []string {
	out := make([]string, len(states))
	for i, st := range states {
		out[i] = string(st)
	}
	return out
}
