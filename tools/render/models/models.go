package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

// Page is the rendered state of a quiz page after its JavaScript ran.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	HTMLHash string `json:"html_hash"`
	RenderMS int    `json:"render_ms"`
}

// Classify maps a browser failure onto the render error taxonomy.
func Classify(ctx context.Context, url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", quiz.ErrRenderTimeout, url, err)
	}
	return fmt.Errorf("%w: %s: %v", quiz.ErrRender, url, err)
}

// Truncate caps text at max characters; max <= 0 disables the cap.
func Truncate(text string, max int) string {
	return helpers.Truncate(strings.TrimSpace(text), max)
}
