package rod

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mohammad-safakhou/quizsolver/tools/render/models"
)

// Render launches a go-rod controlled browser per call.
type Render struct {
	Timeout   time.Duration
	Settle    time.Duration
	MaxChars  int
	UserAgent string
	Bin       string
}

func (r Render) Render(ctx context.Context, pageURL string) (models.Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Page{}, models.Classify(ctx, pageURL, errors.New("invalid url"))
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	t0 := time.Now()

	page, err := r.capture(ctx, pageURL)
	page.URL = pageURL
	page.RenderMS = int(time.Since(t0) / time.Millisecond)
	if err != nil {
		return page, models.Classify(ctx, pageURL, err)
	}
	return page, nil
}

func (r Render) capture(ctx context.Context, pageURL string) (models.Page, error) {
	l := launcher.New().Headless(true).Context(ctx)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return models.Page{}, err
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return models.Page{}, err
	}
	defer browser.Close()

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.Page{}, err
	}
	if r.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.UserAgent}); err != nil {
			return models.Page{}, err
		}
	}
	if err := p.Navigate(pageURL); err != nil {
		return models.Page{}, err
	}
	if err := p.WaitLoad(); err != nil {
		return models.Page{}, err
	}
	if r.Settle > 0 {
		select {
		case <-time.After(r.Settle):
		case <-ctx.Done():
			return models.Page{}, ctx.Err()
		}
	}

	html, err := p.HTML()
	if err != nil {
		return models.Page{}, err
	}
	obj, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return models.Page{}, err
	}
	var title string
	if info, err := p.Info(); err == nil {
		title = info.Title
	}

	sum := sha1.Sum([]byte(html))
	return models.Page{
		Title:    strings.TrimSpace(title),
		HTML:     html,
		Text:     models.Truncate(obj.Value.Str(), r.MaxChars),
		HTMLHash: hex.EncodeToString(sum[:]),
	}, nil
}
