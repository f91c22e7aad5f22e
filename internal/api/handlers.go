package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
	"github.com/ewfx/gaipl-booleans/pkg/models"
)

const noMatchMessage = "No KB match found"

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if g.config.MaxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxRequestSize)
	}
	defer r.Body.Close()

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if g.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.RequestTimeout)
		defer cancel()
	}

	result, err := g.matcher.Match(ctx, knowledgebase.MatchRequest{
		Issue:  req.Issue,
		DryRun: req.IsDryRun(),
	})
	switch {
	case errors.Is(err, knowledgebase.ErrEmptyIssue):
		writeErrorResponse(w, http.StatusBadRequest, "issue is required")
		return
	case errors.Is(err, knowledgebase.ErrNoMatch):
		writeErrorResponse(w, http.StatusNotFound, noMatchMessage)
		return
	case err != nil:
		g.logger.Error("chat request failed", "error", err, "request_id", RequestID(r.Context()))
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		KBUsed:   result.KBUsed,
		Commands: result.JoinedCommands(),
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if g.health == nil {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	g.health.HTTPHandler()(w, r)
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, g.metrics.snapshot())
}
