// Package strategy defines the contract shared by the deterministic solvers
// (file, api, stat). Each returns exactly one Result per question; failures
// are reported inside the Result as undetermined so the caller can fall back
// to the LLM with whatever context was gathered.
package strategy

import (
	"context"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

type Strategy interface {
	Name() string
	Solve(ctx context.Context, q quiz.Question) quiz.Result
}

// Func adapts a function to Strategy.
type Func struct {
	ID string
	Fn func(ctx context.Context, q quiz.Question) quiz.Result
}

func (f Func) Name() string { return f.ID }

func (f Func) Solve(ctx context.Context, q quiz.Question) quiz.Result { return f.Fn(ctx, q) }
