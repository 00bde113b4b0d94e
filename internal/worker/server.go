package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrTaskNotFound is returned for unknown task IDs.
	ErrTaskNotFound = errors.New("worker: task not found")

	// ErrTaskFailed is returned by Run when the research itself failed.
	ErrTaskFailed = errors.New("worker: task failed")
)

// Handler processes incoming researcher requests.
type Handler interface {
	HandleRun(ctx context.Context, req RunRequest) (*Task, error)
	HandleGet(ctx context.Context, req GetRequest) (*Task, error)
	HandleList(ctx context.Context, req ListRequest) (*ListResponse, error)
	HandleCancel(ctx context.Context, req CancelRequest) (*Task, error)
}

// Server exposes a Handler over HTTP/JSON-RPC.
type Server struct {
	card    Card
	handler Handler
	logger  *zap.Logger

	mu   sync.Mutex
	http *http.Server
	addr net.Addr
}

// NewServer creates a researcher server. A nil logger discards logs.
func NewServer(card Card, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		card:    card,
		handler: handler,
		logger:  logger,
	}
}

// Routes returns the HTTP handler serving the card and the JSON-RPC endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CardPath, s.handleCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start binds addr and serves in a background goroutine. Bind errors are
// returned to the caller.
func (s *Server) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("worker: listen %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s.Routes()}
	s.mu.Lock()
	s.http = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("researcher server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("researcher listening", zap.String("addr", ln.Addr().String()), zap.String("name", s.card.Name))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC decodes a JSON-RPC 2.0 request and dispatches it to the
// handler method named by req.Method.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidRequest, "Invalid request: jsonrpc must be \"2.0\"")
		return
	}

	ctx := r.Context()
	switch req.Method {
	case MethodRun:
		dispatch(ctx, w, &req, s.handler.HandleRun)
	case MethodGet:
		dispatch(ctx, w, &req, s.handler.HandleGet)
	case MethodList:
		dispatch(ctx, w, &req, s.handler.HandleList)
	case MethodCancel:
		dispatch(ctx, w, &req, s.handler.HandleCancel)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P and calls fn.
func dispatch[P, R any](ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest, fn func(context.Context, P) (R, error)) {
	var params P
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	result, err := fn(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}
	writeJSONRPCResult(w, req.ID, result)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return ErrCodeTaskNotFound
	case errors.Is(err, ErrTaskFailed):
		return ErrCodeTaskFailed
	case errors.Is(err, errInvalidParams):
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternal
	}
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	})
}

func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	})
}
