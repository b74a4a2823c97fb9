package chromedp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/quizsolver/tools/render/models"
)

// Render drives a fresh headless Chrome per call.
type Render struct {
	Timeout   time.Duration // Whole render budget
	Settle    time.Duration // Extra wait after body is ready so late scripts can run
	MaxChars  int           // Maximum characters of visible text to keep
	UserAgent string
	ExecPath  string // Optional browser binary
}

func (r Render) Render(ctx context.Context, pageURL string) (models.Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Page{}, models.Classify(ctx, pageURL, errors.New("invalid url"))
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	t0 := time.Now()

	html, text, title, err := r.capture(ctx, pageURL)
	if err != nil {
		return models.Page{URL: pageURL, RenderMS: int(time.Since(t0) / time.Millisecond)}, models.Classify(ctx, pageURL, err)
	}

	// innerText is empty for pages that draw into canvas or shadow roots; fall back to readability
	if strings.TrimSpace(text) == "" {
		if article, rerr := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL)); rerr == nil {
			text = article.TextContent
			if title == "" {
				title = article.Title
			}
		}
	}

	sum := sha1.Sum([]byte(html))
	return models.Page{
		URL:      pageURL,
		Title:    strings.TrimSpace(title),
		HTML:     html,
		Text:     models.Truncate(text, r.MaxChars),
		HTMLHash: hex.EncodeToString(sum[:]),
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func (r Render) capture(ctx context.Context, pageURL string) (html, text, title string, err error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.Settle > 0 {
		actions = append(actions, chromedp.Sleep(r.Settle))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
		chromedp.Title(&title),
	)
	err = chromedp.Run(bctx, actions...)
	return html, text, title, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
