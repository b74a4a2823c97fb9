package render

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/tools/render/chromedp"
	"github.com/mohammad-safakhou/quizsolver/tools/render/models"
	"github.com/mohammad-safakhou/quizsolver/tools/render/rod"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultSettle   = 2 * time.Second
	MaxCharsDefault = 200000
)

// Renderer loads a URL in a headless browser and returns the rendered page.
// Failures are ErrRenderTimeout or ErrRender from package quiz.
type Renderer interface {
	Render(ctx context.Context, url string) (models.Page, error)
}

type Engine string

const (
	ChromedpEngine Engine = "chromedp"
	RodEngine      Engine = "rod"
)

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, url string) (models.Page, error)

func (f RendererFunc) Render(ctx context.Context, url string) (models.Page, error) {
	return f(ctx, url)
}

func NewRenderer(cfg config.RenderConfig) (Renderer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	settle := cfg.Settle
	if settle < 0 {
		settle = DefaultSettle
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch Engine(cfg.Engine) {
	case ChromedpEngine, "":
		return chromedp.Render{Timeout: timeout, Settle: settle, MaxChars: maxChars, UserAgent: cfg.UserAgent, ExecPath: cfg.Bin}, nil
	case RodEngine:
		return rod.Render{Timeout: timeout, Settle: settle, MaxChars: maxChars, UserAgent: cfg.UserAgent, Bin: cfg.Bin}, nil
	default:
		return nil, fmt.Errorf("unsupported render engine %q", cfg.Engine)
	}
}
