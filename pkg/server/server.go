package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bastiangx/dotsearch/internal/logger"
	"github.com/bastiangx/dotsearch/pkg/config"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/bastiangx/dotsearch/pkg/search"
	"github.com/bastiangx/dotsearch/pkg/transport"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second

	// maxLabelBytes is the DNS limit for one label, in octets.
	maxLabelBytes = 63
)

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error  string `json:"error" msgpack:"error"`
	Status int    `json:"status" msgpack:"status"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string         `json:"status" msgpack:"status"`
	Stats  map[string]int `json:"stats,omitempty" msgpack:"stats,omitempty"`
}

// searchRequest is the decoded body of POST /api/search
type searchRequest struct {
	Words        []string `json:"words" msgpack:"words" validate:"dive,required,dnslabel"`
	Prefixes     []string `json:"prefixes" msgpack:"prefixes" validate:"dive,required,dnslabel"`
	Postfixes    []string `json:"postfixes" msgpack:"postfixes" validate:"dive,required,dnslabel"`
	MinWordCount int      `json:"minWordCount" msgpack:"minWordCount" validate:"gte=0"`
	MaxWordCount int      `json:"maxWordCount" msgpack:"maxWordCount" validate:"gte=0,gtefield=MinWordCount"`
}

func (r searchRequest) payload() query.Payload {
	return query.Payload{
		Words:        r.Words,
		Prefixes:     r.Prefixes,
		Postfixes:    r.Postfixes,
		MinWordCount: r.MinWordCount,
		MaxWordCount: r.MaxWordCount,
	}
}

// CountResponse is the body of GET /api/count
type CountResponse struct {
	Prefix     string `json:"prefix" msgpack:"prefix"`
	Registered int    `json:"registered" msgpack:"registered"`
}

// prefixCounter is implemented by lookups that can count registered names.
type prefixCounter interface {
	CountPrefix(prefix string) int
}

// Server handles search and lookup requests
type Server struct {
	lookup   search.Lookuper
	cfg      config.ServerConfig
	validate *validator.Validate
	router   chi.Router
	log      *log.Logger
	requests atomic.Int64
}

// NewServer creates a search server answering from lookup.
func NewServer(lookup search.Lookuper, cfg config.ServerConfig) *Server {
	s := &Server{
		lookup:   lookup,
		cfg:      cfg,
		validate: newValidator(),
		log:      logger.New("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/batch-lookup", s.handleBatchLookup)
		r.Get("/count", s.handleCount)
	})
	s.router = r
	return s
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *log.Logger) {
	if l != nil {
		s.log = l
	}
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("serving", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Debug("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Labels are limited in octets; the builtin max counts runes.
	if err := v.RegisterValidation("dnslabel", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxLabelBytes
	}); err != nil {
		panic(err)
	}
	return v
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Stats: map[string]int{"requests": int(s.requests.Load())}}
	if st, ok := s.lookup.(interface{ Stats() map[string]int }); ok {
		for k, v := range st.Stats() {
			resp.Stats[k] = v
		}
	}
	s.sendResponse(w, transport.CodecForContentType(r.Header.Get("Accept")), http.StatusOK, resp)
}

// handleSearch validates the payload, expands it and answers with sorted free/reserved lists.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	codec := transport.CodecForContentType(r.Header.Get("Content-Type"))

	var req searchRequest
	if err := s.decode(w, r, codec, &req); err != nil {
		s.log.Debug("bad search body", "err", err)
		s.sendError(w, codec, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.sendError(w, codec, validationMessage(err), http.StatusBadRequest)
		return
	}

	p := req.payload()
	if s.cfg.MaxTokens > 0 && p.TokenCount() > s.cfg.MaxTokens {
		s.sendError(w, codec, fmt.Sprintf("Too many tokens: %d (max %d)", p.TokenCount(), s.cfg.MaxTokens), http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := search.Run(r.Context(), s.lookup, p, s.cfg.MaxCandidates)
	if err != nil {
		s.log.Error("search failed", "payload", p, "err", err)
		s.sendError(w, codec, "Lookup failed", http.StatusBadGateway)
		return
	}
	s.log.Debug("search", "payload", p, "free", len(res.Free), "reserved", len(res.Reserved), "took", time.Since(start))
	s.sendResponse(w, codec, http.StatusOK, res)
}

func (s *Server) handleBatchLookup(w http.ResponseWriter, r *http.Request) {
	codec := transport.CodecForContentType(r.Header.Get("Content-Type"))

	var req transport.BatchLookupRequest
	if err := s.decode(w, r, codec, &req); err != nil {
		s.sendError(w, codec, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.cfg.MaxCandidates > 0 && len(req.Words) > s.cfg.MaxCandidates {
		s.sendError(w, codec, fmt.Sprintf("Too many words: %d (max %d)", len(req.Words), s.cfg.MaxCandidates), http.StatusBadRequest)
		return
	}

	isFree, err := s.lookup.BatchLookup(r.Context(), req.Words)
	if err != nil {
		s.log.Error("batch lookup failed", "words", len(req.Words), "err", err)
		s.sendError(w, codec, "Lookup failed", http.StatusBadGateway)
		return
	}
	s.sendResponse(w, codec, http.StatusOK, transport.BatchLookupResponse{IsFree: isFree})
}

// handleCount reports how many registered names start with the prefix query parameter.
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	codec := transport.CodecForContentType(r.Header.Get("Accept"))
	counter, ok := s.lookup.(prefixCounter)
	if !ok {
		s.sendError(w, codec, "Prefix counts need a local registry", http.StatusNotImplemented)
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if len(prefix) > maxLabelBytes {
		s.sendError(w, codec, fmt.Sprintf("prefix must be at most %d bytes", maxLabelBytes), http.StatusBadRequest)
		return
	}
	s.sendResponse(w, codec, http.StatusOK, CountResponse{Prefix: prefix, Registered: counter.CountPrefix(prefix)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, codec transport.Codec, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("empty body")
	}
	return codec.Unmarshal(data, v)
}

// sendResponse encodes response with codec and writes it with status.
func (s *Server) sendResponse(w http.ResponseWriter, codec transport.Codec, status int, response any) {
	data, err := codec.Marshal(response)
	if err != nil {
		s.log.Errorf("Marshaling response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.log.Debug("writing response", "err", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, codec transport.Codec, message string, code int) {
	s.sendResponse(w, codec, code, ErrorResponse{Error: message, Status: code})
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.StructField())
		switch fe.Tag() {
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", field, fe.Param()))
		case "gtefield":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", field, lowerFirst(fe.Param())))
		case "dnslabel":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %d bytes", fe.Namespace(), maxLabelBytes))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s must not be empty", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
