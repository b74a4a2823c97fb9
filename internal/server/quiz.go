package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/pipeline"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

// solveQuiz handles POST /quiz. The whole session runs inside the request;
// the response carries the single final outcome.
func (s *Server) solveQuiz(c echo.Context) error {
	var req QuizRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if !s.secret.Check(req.Secret) {
		s.logger.Warn("rejected quiz request", zap.String("email", req.Email), zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusForbidden, QuizResponse{
			Status:  statusError,
			Message: "Unauthorized",
			Code:    quiz.Code(quiz.ErrUnauthorized),
		})
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		req.Email = s.cfg.DefaultEmail
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	target, err := helpers.ResolveURL("", req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "url must be an absolute http(s) URL")
	}

	out := s.runner.Run(c.Request().Context(), pipeline.Request{URL: target, Email: req.Email, Secret: req.Secret})
	code, resp := ResponseFor(out)
	return c.JSON(code, resp)
}

// ResponseFor renders a session outcome as the HTTP status and body of
// POST /quiz.
func ResponseFor(out pipeline.Outcome) (int, QuizResponse) {
	resp := QuizResponse{
		Answer:       out.Answer,
		Status:       statusSuccess,
		SessionID:    out.SessionID,
		Strategy:     out.Strategy,
		FallbackFrom: out.FallbackFrom,
		Submission:   out.Submission,
	}
	if out.Err == nil {
		return http.StatusOK, resp
	}
	resp.Answer = ""
	resp.Status = statusError
	resp.Message = out.Err.Error()
	resp.Code = quiz.Code(out.Err)
	return statusFor(out.Err), resp
}

// statusFor maps a failed session onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, quiz.ErrSessionTimeout), errors.Is(err, quiz.ErrRenderTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, quiz.ErrNoQuestionFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quiz.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, quiz.ErrRender), errors.Is(err, quiz.ErrProvider), errors.Is(err, quiz.ErrSolverTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	if s.sessions != nil {
		n, err := s.sessions.Active(c.Request().Context())
		if err != nil {
			s.logger.Warn("active session count failed", zap.Error(err))
			resp.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		resp.ActiveSessions = n
	}
	return c.JSON(http.StatusOK, resp)
}
