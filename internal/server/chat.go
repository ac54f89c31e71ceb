package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/civicnav/internal/agent/core"
	"github.com/mohammad-safakhou/civicnav/internal/helpers"
	"github.com/mohammad-safakhou/civicnav/internal/resources"
	"github.com/mohammad-safakhou/civicnav/internal/store"
	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
)

const maxMessageRunes = 4000

var chatTracer = otel.Tracer("civicnav/internal/server/chat")

// ChatHandler exposes turns and session state over HTTP.
type ChatHandler struct {
	orch    *core.Orchestrator
	archive *store.Store
	logger  *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.POST("/chat/stream", h.stream)
	g.GET("/sessions/:id", h.session)
	g.GET("/sessions/:id/resources", h.sessionResources)
	g.GET("/categories", h.categories)
	g.GET("/stats", h.stats)
	g.POST("/keys/verify", h.verifyKey)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	APIKeys   *struct {
		Reasoning string `json:"reasoning"`
		Search    string `json:"search"`
	} `json:"api_keys,omitempty"`
}

func (h *ChatHandler) bindTurn(c echo.Context) (core.TurnRequest, error) {
	var body chatRequest
	if err := c.Bind(&body); err != nil {
		return core.TurnRequest{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg := helpers.PlainText(body.Message)
	if msg == "" {
		return core.TurnRequest{}, echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		return core.TurnRequest{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("message longer than %d characters", maxMessageRunes))
	}
	req := core.TurnRequest{SessionID: strings.TrimSpace(body.SessionID), Message: msg}
	if body.APIKeys != nil {
		req.Credentials = core.Credentials{
			Reasoning: strings.TrimSpace(body.APIKeys.Reasoning),
			Search:    strings.TrimSpace(body.APIKeys.Search),
		}
	}
	return req, nil
}

// chat runs a turn and returns its result. Aborted turns are still 200: the
// result carries the fallback reply and the error kind.
func (h *ChatHandler) chat(c echo.Context) error {
	req, err := h.bindTurn(c)
	if err != nil {
		return err
	}
	ctx, span := chatTracer.Start(c.Request().Context(), "ChatHandler.chat")
	defer span.End()
	res := h.orch.Run(ctx, req)
	span.SetAttributes(attribute.String("session.id", res.SessionID), attribute.String("turn.id", res.TurnID))
	if res.Error != nil {
		span.SetStatus(codes.Error, res.Error.Kind)
	}
	return c.JSON(http.StatusOK, res)
}

// stream runs a turn and forwards its progress as server-sent events. A
// client that goes away stops the forwarding, not the turn.
func (h *ChatHandler) stream(c echo.Context) error {
	req, err := h.bindTurn(c)
	if err != nil {
		return err
	}
	ctx, span := chatTracer.Start(c.Request().Context(), "ChatHandler.stream")
	defer span.End()

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	turn := h.orch.RunTurn(ctx, req)
	span.SetAttributes(attribute.String("session.id", turn.SessionID), attribute.String("turn.id", turn.TurnID))
	for {
		select {
		case <-ctx.Done():
			h.logger.Printf("stream for turn %s closed by client", turn.TurnID)
			return nil
		case ev, open := <-turn.Events():
			if !open {
				return nil
			}
			if err := writeEvent(resp, ev); err != nil {
				span.RecordError(err)
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev core.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
	return err
}

type sessionSummary struct {
	SessionID    string        `json:"session_id"`
	Turns        int           `json:"turns"`
	Resources    int           `json:"resources"`
	LastCategory string        `json:"last_category,omitempty"`
	LastUrgency  string        `json:"last_urgency,omitempty"`
	History      []historyItem `json:"history"`
	UpdatedAt    *time.Time    `json:"updated_at,omitempty"`
}

type historyItem struct {
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Category  string    `json:"need_category"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *ChatHandler) session(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id required")
	}
	sess, err := h.orch.Sessions().Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := sessionSummary{SessionID: id, Turns: len(sess.Turns), Resources: len(sess.Resources), History: []historyItem{}}
	if last, ok := sess.LastTurn(); ok {
		out.LastCategory = last.NeedCategory
		out.LastUrgency = string(last.Urgency)
		updated := sess.UpdatedAt
		out.UpdatedAt = &updated
	}
	for _, t := range sess.Turns {
		out.History = append(out.History, historyItem{Message: t.Message, Reply: t.Reply, Category: t.NeedCategory, CreatedAt: t.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

// sessionResources lists the accumulated resources, ranked by q when given.
func (h *ChatHandler) sessionResources(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	sess, err := h.orch.Sessions().Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	limit := 0
	if v := strings.TrimSpace(c.QueryParam("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	hits, err := resources.Rank(sess.Resources, c.QueryParam("q"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": id,
		"query":      c.QueryParam("q"),
		"results":    hits,
	})
}

type categoryInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var knownCategories = []string{
	models.CategoryHousing, models.CategoryFood, models.CategoryHealthcare,
	models.CategoryTransportation, models.CategoryEmployment, models.CategoryFinancial,
	models.CategoryLegal, models.CategoryFamilyServices, models.CategoryElderlyServices,
	models.CategoryGeneral,
}

func (h *ChatHandler) categories(c echo.Context) error {
	out := make([]categoryInfo, 0, len(knownCategories))
	for _, id := range knownCategories {
		out = append(out, categoryInfo{ID: id, Label: resources.CategoryLabel(id)})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": out,
		"location":   h.orch.Location(),
		"stages":     h.orch.StageNames(),
	})
}

// stats reports archived turns per category over a window (default 24h).
func (h *ChatHandler) stats(c echo.Context) error {
	if h.archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "conversation archive not configured")
	}
	window := 24 * time.Hour
	if v := strings.TrimSpace(c.QueryParam("window")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "window must be a positive duration such as 24h")
		}
		window = d
	}
	since := time.Now().UTC().Add(-window)
	stats, err := h.archive.CategoryStats(c.Request().Context(), since)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"since": since, "categories": stats})
}

type verifyKeyRequest struct {
	APIKey string `json:"api_key"`
}

type verifyKeyResponse struct {
	Valid     bool   `json:"valid"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message"`
}

// verifyKey checks a reasoning key before the caller retries with it.
// A rejected key is a 200 with valid=false; an unreachable service is a 502.
func (h *ChatHandler) verifyKey(c echo.Context) error {
	var body verifyKeyRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(body.APIKey) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "api_key required")
	}
	err := h.orch.VerifyReasoningKey(c.Request().Context(), body.APIKey)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, verifyKeyResponse{Valid: true, Message: "API key works"})
	case upstream.IsInvalidCredentials(err):
		return c.JSON(http.StatusOK, verifyKeyResponse{ErrorKind: upstream.Kind(err), Message: "API key was rejected"})
	default:
		h.logger.Printf("key verification failed: %v", err)
		return c.JSON(http.StatusBadGateway, verifyKeyResponse{ErrorKind: upstream.Kind(err), Message: "could not reach the reasoning service"})
	}
}
