package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/logging"
	"github.com/mohammad-safakhou/quizsolver/internal/pipeline"
	"github.com/mohammad-safakhou/quizsolver/internal/server"
)

type solveFlags struct {
	url    string
	email  string
	secret string
	submit bool
}

func solveCMD(cfgPath *string) *cobra.Command {
	var f solveFlags
	solve := &cobra.Command{
		Use:   "solve",
		Short: "Solve a single quiz URL and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadForSolve(*cfgPath)
			if err != nil {
				return err
			}
			if f.submit {
				cfg.Quiz.SubmitEnabled = true
			}
			if f.email == "" {
				f.email = cfg.Server.DefaultEmail
			}
			if f.secret == "" {
				f.secret = cfg.Server.Secret
			}
			logger, err := logging.New(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, store, err := pipeline.Build(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSolve(ctx, p, f, cmd.OutOrStdout())
		},
	}
	solve.Flags().StringVar(&f.url, "url", "", "quiz page URL")
	solve.Flags().StringVar(&f.email, "email", "", "email sent with a submission (default server.default_email)")
	solve.Flags().StringVar(&f.secret, "secret", "", "secret sent with a submission (default server.secret)")
	solve.Flags().BoolVar(&f.submit, "submit", false, "post the answer to the page's submit URL")
	_ = solve.MarkFlagRequired("url")
	return solve
}

// runSolve runs one session and writes the same JSON body POST /quiz
// would return. A failed session is also returned as an error.
func runSolve(ctx context.Context, runner server.Runner, f solveFlags, w io.Writer) error {
	target, err := helpers.ResolveURL("", strings.TrimSpace(f.url))
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}
	out := runner.Run(ctx, pipeline.Request{URL: target, Email: f.email, Secret: f.secret})
	_, resp := server.ResponseFor(out)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if out.Err != nil {
		return errors.New(resp.Code)
	}
	return nil
}
