// Package prompt holds the request shape shared by every provider.
package prompt

// Prompt is a system instruction plus one user message.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}
