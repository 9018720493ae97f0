// Package server exposes the calculator over HTTP and WebSocket for the
// browser front end.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zephyrtronium/derivcalc"
)

const tracerName = "github.com/zephyrtronium/derivcalc/internal/server"

// maxBody is the largest request body the evaluate endpoint accepts.
const maxBody = 64 << 10

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	Addr string
	// ReadTimeout, WriteTimeout, and IdleTimeout are passed to http.Server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Marker surrounds the rewritten symbol in each derivation step.
	Marker derivcalc.Marker
	// MaxExpression is the longest expression evaluated, in runes.
	MaxExpression int
	// AllowedOrigins lists the origins allowed to open WebSocket
	// connections besides the server's own. "*" allows any origin.
	AllowedOrigins []string
}

// DefaultConfig returns the configuration used by the command line.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Marker:        derivcalc.DefaultMarker,
		MaxExpression: derivcalc.DefaultMaxLength,
	}
}

// Server serves expression evaluation.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	logger   zerolog.Logger
	metrics  *Metrics
	schema   graphql.Schema
	upgrader websocket.Upgrader
}

// NewServer creates a server with all routes registered. A non-positive
// MaxExpression means derivcalc.DefaultMaxLength.
func NewServer(cfg Config, logger zerolog.Logger) *Server {
	if cfg.MaxExpression <= 0 {
		cfg.MaxExpression = derivcalc.DefaultMaxLength
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: NewMetrics(),
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /graphql", s.handleGraphQL)
	s.mux.HandleFunc("GET /internal/metrics", s.handleMetrics)
	s.schema = s.newSchema()
	return s
}

// Metrics returns the server's metrics (for tests).
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the server's routes wrapped in request logging and
// tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.loggingMiddleware(s.mux), "derivcalc")
}

// ListenAndServe starts the HTTP server. It serves TLS if both
// DERIVCALC_TLS_CERT and DERIVCALC_TLS_KEY are set.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	host, port, _ := net.SplitHostPort(s.cfg.Addr)
	if host == "" {
		host = "localhost"
	}

	certFile := os.Getenv("DERIVCALC_TLS_CERT")
	keyFile := os.Getenv("DERIVCALC_TLS_KEY")
	if certFile != "" && keyFile != "" {
		s.logger.Info().Msgf("derivcalc listening on https://%s:%s", host, port)
		return srv.ListenAndServeTLS(certFile, keyFile)
	}

	s.logger.Info().Msgf("derivcalc listening on http://%s:%s", host, port)
	return srv.ListenAndServe()
}

// evaluate runs one expression under a span and records it.
func (s *Server) evaluate(ctx context.Context, expr string) derivcalc.Result {
	_, span := otel.Tracer(tracerName).Start(ctx, "derivcalc.evaluate")
	defer span.End()
	res := derivcalc.EvaluateExpression(expr,
		derivcalc.WithLogger(s.logger),
		derivcalc.LimitLength(s.cfg.MaxExpression),
		s.cfg.Marker,
	)
	span.SetAttributes(
		attribute.Int("derivcalc.expression.length", len(expr)),
		attribute.Int("derivcalc.steps", len(res.Steps)),
		attribute.Bool("derivcalc.success", res.Success),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, errorKind(res.Err))
	}
	s.metrics.Record(res)
	return res
}

// evaluateRequest is the body of POST /evaluate and of each WebSocket
// message.
type evaluateRequest struct {
	// ID is echoed in WebSocket replies so clients can match them.
	ID         string `json:"id,omitempty"`
	Expression string `json:"expression"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	body := http.MaxBytesReader(w, r.Body, maxBody)
	var err error
	if mediaType(r.Header.Get("Content-Type")) == cborType {
		err = cbor.NewDecoder(body).Decode(&req)
	} else {
		err = json.NewDecoder(body).Decode(&req)
	}
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty request body")
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if n := utf8.RuneCountInString(req.Expression); n > s.cfg.MaxExpression {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("expression is %d characters long, limit is %d", n, s.cfg.MaxExpression),
		})
		return
	}
	res := s.evaluate(r.Context(), req.Expression)
	resp := NewResponse(req.Expression, res)
	if mediaType(r.Header.Get("Accept")) == cborType {
		writeCBOR(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkOrigin allows WebSocket connections from the server's own origin and
// from the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "derivcalc"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Debug().
			Str("id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("dur", time.Since(start)).
			Msg("request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// cborType is the media type for CBOR request and response bodies.
const cborType = "application/cbor"

// mediaType returns the media type of a Content-Type or single-valued
// Accept header, without parameters.
func mediaType(h string) string {
	t, _, _ := strings.Cut(h, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// writeCBOR marshals v as CBOR and writes it to w.
func writeCBOR(w http.ResponseWriter, status int, v any) {
	b, err := cbor.Marshal(v)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", cborType)
	w.WriteHeader(status)
	w.Write(b)
}

// writeJSON marshals v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
