// Package server exposes an Engine over HTTP.
//
//	POST /pdf-creator       {"config": <template>}      -> application/pdf
//	POST /pdf-form-creator  {"config": <form config>}   -> application/pdf
//	GET  /healthz                                       -> {"type":"ok",...}
//
// Failures answer {"type":"error","message":...} with 400 for an invalid
// configuration, 502 when the source or append PDF cannot be fetched, 422
// when it cannot be parsed and 500 otherwise.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/doctpl"
	"github.com/lvillar/pdfstamp/form"
)

// DefaultMaxBodyBytes caps request bodies when WithMaxBodyBytes is not set.
const DefaultMaxBodyBytes = 8 << 20

// SkippedHeader carries the number of elements left out of a rendered PDF.
const SkippedHeader = "X-Pdfstamp-Skipped"

// Server routes requests to an Engine.
type Server struct {
	engine  *pdfstamp.Engine
	log     *zap.Logger
	secret  []byte
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for requests and failed renders.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithAuthSecret requires HS256 bearer tokens signed with secret on the
// render endpoints. An empty secret leaves them open.
func WithAuthSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New returns a Server rendering with engine.
func New(engine *pdfstamp.Engine, opts ...Option) *Server {
	s := &Server{engine: engine, log: zap.NewNop(), maxBody: DefaultMaxBodyBytes}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	render := []Middleware{BodyLimit(s.maxBody)}
	if len(s.secret) > 0 {
		render = append([]Middleware{BearerAuth(s.secret, s.log)}, render...)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /pdf-creator", chain(http.HandlerFunc(s.handleTemplate), render...))
	mux.Handle("POST /pdf-form-creator", chain(http.HandlerFunc(s.handleForm), render...))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.log, http.StatusOK, Message{Type: "ok", Message: "healthy"})
	})
	return chain(mux, Recover(s.log), RequestLog(s.log))
}

type request struct {
	Config json.RawMessage `json:"config"`
}

// readConfig decodes the request envelope and returns the config object.
func readConfig(r *http.Request) ([]byte, int, error) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("request body over %d bytes", tooBig.Limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err)
	}
	if len(req.Config) == 0 || string(req.Config) == "null" {
		return nil, http.StatusBadRequest, errors.New("request body needs a config object")
	}
	return req.Config, 0, nil
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	data, status, err := readConfig(r)
	if err != nil {
		writeError(w, s.log, status, err.Error())
		return
	}
	tpl, err := doctpl.Parse(data)
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.RenderTemplate(r.Context(), tpl)
	s.respond(w, r, res, err)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	data, status, err := readConfig(r)
	if err != nil {
		writeError(w, s.log, status, err.Error())
		return
	}
	cfg, err := form.Parse(data)
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.FillForm(r.Context(), cfg)
	s.respond(w, r, res, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, res *pdfstamp.Result, err error) {
	if err != nil {
		status := StatusOf(err)
		s.log.Error("render failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
		writeError(w, s.log, status, err.Error())
		return
	}
	w.Header().Set(SkippedHeader, strconv.Itoa(len(res.Skipped)))
	writePDF(w, s.log, res.FileName, res.PDF)
}

// StatusOf maps a render error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, pdfstamp.ErrInvalidConfig),
		errors.Is(err, pdfstamp.ErrNoSource),
		errors.Is(err, doctpl.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, pdfstamp.ErrSourceFetch), errors.Is(err, pdfstamp.ErrAppendFetch):
		return http.StatusBadGateway
	case errors.Is(err, pdfstamp.ErrSourceParse), errors.Is(err, pdfstamp.ErrAppendParse):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Run serves hs until ctx is done, then shuts it down within timeout. cleanup,
// if set, runs after the listener stops accepting connections.
func Run(ctx context.Context, hs *http.Server, log *zap.Logger, timeout time.Duration, cleanup func()) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", hs.Addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down", zap.Duration("timeout", timeout))

	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := hs.Shutdown(sctx)
	if cleanup != nil {
		cleanup()
	}
	if serveErr := <-errc; serveErr != nil {
		return serveErr
	}
	if err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
