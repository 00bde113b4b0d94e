package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/export"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/state"
	"github.com/dusk-indust/deepresearch/internal/status"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// StartRequest is the body of POST /v1/sessions. Messages take precedence
// over Query.
type StartRequest struct {
	SessionID string          `json:"sessionId,omitempty"`
	Query     string          `json:"query,omitempty"`
	Messages  []state.Message `json:"messages,omitempty"`
}

// ReplyRequest is the body of POST /v1/sessions/{id}/reply.
type ReplyRequest struct {
	Reply string `json:"reply"`
}

// AcceptedResponse is returned for sessions started with ?async=true.
type AcceptedResponse struct {
	SessionID string `json:"sessionId"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the body of GET /v1/sessions.
type ListResponse struct {
	Sessions []status.SessionStatus `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := state.InputState{Messages: req.Messages}
	if len(in.Messages) == 0 {
		if strings.TrimSpace(req.Query) == "" {
			writeError(w, http.StatusBadRequest, errors.New("query or messages is required"))
			return
		}
		in.Messages = []state.Message{state.UserMessage(req.Query)}
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		id := req.SessionID
		if id == "" {
			id = uuid.NewString()
		} else if _, err := s.runner.Session(r.Context(), id); err == nil {
			writeError(w, http.StatusConflict, orchestrator.ErrSessionExists)
			return
		}
		s.background(id, func(ctx context.Context) (*orchestrator.Outcome, error) {
			return s.runner.Start(ctx, id, in)
		})
		writeJSON(w, http.StatusAccepted, AcceptedResponse{SessionID: id})
		return
	}

	out, err := s.runner.Start(r.Context(), req.SessionID, in)
	s.respondOutcome(w, out, err)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ReplyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reply) == "" {
		writeError(w, http.StatusBadRequest, errors.New("reply is required"))
		return
	}
	reply := state.UserMessage(req.Reply)

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		// Fail fast on sessions that cannot be resumed.
		cp, err := s.runner.Session(r.Context(), id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if cp.Phase != checkpoint.PhaseAwaitingInput {
			writeError(w, http.StatusConflict, orchestrator.ErrNotAwaitingInput)
			return
		}
		s.background(id, func(ctx context.Context) (*orchestrator.Outcome, error) {
			return s.runner.Resume(ctx, id, reply)
		})
		writeJSON(w, http.StatusAccepted, AcceptedResponse{SessionID: id})
		return
	}

	out, err := s.runner.Resume(r.Context(), id, reply)
	s.respondOutcome(w, out, err)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	cp, err := s.runner.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status.FromCheckpoint(cp))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	cps, err := s.runner.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && len(cps) > limit {
		cps = cps[:limit]
	}
	writeJSON(w, http.StatusOK, ListResponse{Sessions: status.Summaries(cps)})
}

// handleReport serves the final report as Markdown, or the full session
// export with ?format=json.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	cp, err := s.runner.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, export.ExportSession(cp, time.Now()))
		return
	}

	md, err := export.Markdown(cp)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

// respondOutcome writes a Start or Resume result. A session that failed
// during the run still has an outcome and is reported with 200.
func (s *Server) respondOutcome(w http.ResponseWriter, out *orchestrator.Outcome, err error) {
	if out != nil {
		if err != nil {
			s.logger.Warn("session failed", zap.String("session", out.SessionID), zap.Error(err))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeError(w, statusFor(err), err)
}

// background runs fn on the server's base context.
func (s *Server) background(id string, fn func(ctx context.Context) (*orchestrator.Outcome, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out, err := fn(s.base)
		switch {
		case err != nil:
			s.logger.Warn("background session ended with error", zap.String("session", id), zap.Error(err))
		case out != nil:
			s.logger.Info("background session returned", zap.String("session", id), zap.String("phase", string(out.Phase)))
		}
	}()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrSessionExists),
		errors.Is(err, orchestrator.ErrNotAwaitingInput),
		errors.Is(err, export.ErrNoReport):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(code))
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}
