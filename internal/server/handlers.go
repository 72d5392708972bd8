package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"morvo/internal/companion"
)

// validationMessage is shown to callers that omit user_id or message.
const validationMessage = "مطلوب معرف المستخدم والرسالة"

type chatContext struct {
	BusinessType string `json:"business_type"`
	Language     string `json:"language"`
}

type chatRequest struct {
	UserID         string       `json:"user_id"`
	Message        string       `json:"message"`
	ConversationID string       `json:"conversation_id"`
	Context        *chatContext `json:"context"`
}

func (r chatRequest) toCompanion() companion.Request {
	req := companion.Request{
		UserID:         r.UserID,
		Message:        r.Message,
		ConversationID: r.ConversationID,
	}
	if r.Context != nil {
		req.BusinessType = r.Context.BusinessType
		req.Language = r.Context.Language
	}
	return req
}

type chatResponse struct {
	Response          string `json:"response"`
	Companion         string `json:"companion"`
	ConversationID    string `json:"conversation_id,omitempty"`
	ConversationSaved bool   `json:"conversation_saved"`
	Intent            string `json:"intent,omitempty"`
	Fallback          bool   `json:"fallback"`
	Error             string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(c echo.Context) error {
	var body chatRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationMessage})
	}
	if !s.opts.Authorizer.IsAllowed(body.UserID) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	}

	resp, err := s.opts.Companion.Handle(c.Request().Context(), body.toCompanion())
	var vErr *companion.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationMessage})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, chatResponse{
		Response:          resp.Reply,
		Companion:         s.opts.Name,
		ConversationID:    resp.ConversationID,
		ConversationSaved: resp.Saved,
		Intent:            string(resp.Intent),
		Fallback:          resp.Fallback,
	})
}

// handleError renders unexpected failures as the chat error body and
// leaves echo's own HTTP errors (404, 405, ...) untouched.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code != http.StatusInternalServerError {
		c.Echo().DefaultHTTPErrorHandler(err, c)
		return
	}

	log.Printf("[server] %s %s: %v", c.Request().Method, c.Path(), err)
	if err := c.JSON(http.StatusInternalServerError, chatResponse{
		Response:          s.opts.ErrorReply,
		Companion:         s.opts.Name,
		ConversationSaved: false,
		Error:             err.Error(),
	}); err != nil {
		log.Printf("[server] write error response: %v", err)
	}
}

type healthResponse struct {
	Status   string          `json:"status"`
	Provider string          `json:"provider,omitempty"`
	Store    string          `json:"store"`
	Channels map[string]bool `json:"channels,omitempty"`
	Sockets  int64           `json:"websocket_connections"`
	Uptime   string          `json:"uptime"`
}

func (s *Server) handleHealth(c echo.Context) error {
	h := healthResponse{
		Status:   "ok",
		Provider: s.opts.Provider,
		Store:    "ok",
		Sockets:  s.wsConns.Load(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Store.Ping(ctx); err != nil {
			h.Status = "degraded"
			h.Store = err.Error()
		}
	}
	if s.opts.Channels != nil {
		h.Channels = s.opts.Channels()
	}

	code := http.StatusOK
	if h.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, h)
}

func (s *Server) handleLogs(c echo.Context) error {
	if s.opts.Logs == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, s.opts.Logs.Entries())
}
