package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/orian/promptlib/library"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog/log"
)

// maxImportBytes bounds the size of an import document.
const maxImportBytes = 16 << 20

// defaultEventLimit is the number of events returned when no limit is given.
const defaultEventLimit = 50

// Server handles HTTP requests and serialises every library action through
// a single lock, so each action runs to completion before the next starts.
type Server struct {
	mu         sync.Mutex
	controller *library.Controller
	storage    models.Storage
}

func NewServer(controller *library.Controller, storage models.Storage) *Server {
	return &Server{
		controller: controller,
		storage:    storage,
	}
}

// Routes builds the chi router. Static files are served from staticDir
// when it is not empty.
func (s *Server) Routes(staticDir string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/view", func(r chi.Router) {
			r.Get("/", s.handleGetView)
			r.Post("/query", s.handleSetQuery)
			r.Post("/axis", s.handleSetAxis)
			r.Post("/primary", s.handleSetPrimary)
			r.Post("/secondary", s.handleSetSecondary)
			r.Post("/page-size", s.handleSetPageSize)
			r.Post("/page", s.handleGoToPage)
			r.Post("/next", s.handleNextPage)
			r.Post("/prev", s.handlePrevPage)
			r.Post("/favorites-only", s.handleSetFavoritesOnly)
			r.Post("/favorites-only/toggle", s.handleToggleFavoritesOnly)
			r.Post("/tags", s.handleAddTag)
			r.Delete("/tags/{tag}", s.handleRemoveTag)
			r.Post("/theme/toggle", s.handleToggleTheme)
		})

		r.Route("/prompts/{id}", func(r chi.Router) {
			r.Post("/favorite", s.handleToggleFavorite)
			r.Post("/similar", s.handleFocusSimilar)
		})

		r.Route("/library", func(r chi.Router) {
			r.Post("/import", s.handleImport)
			r.Get("/export", s.handleExport)
			r.Post("/generate", s.handleGenerate)
			r.Post("/clear", s.handleClear)
		})

		r.Get("/events", s.handleGetEvents)
		r.Get("/server/ping", s.handlePing)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// apply runs one controller action under the lock.
func (s *Server) apply(action func(c *library.Controller) (library.View, error)) (library.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return action(s.controller)
}

// ImportFile imports the JSON document at path, recording it as kind.
func (s *Server) ImportFile(ctx context.Context, path string, kind models.EventKind) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, n, err := s.controller.Import(ctx, data, kind)
	return n, err
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, _ := s.apply(func(c *library.Controller) (library.View, error) {
		return c.View(), nil
	})
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetQuery(r.Context(), req.Query)
	})
}

func (s *Server) handleSetAxis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Axis models.Axis `json:"axis"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetAxis(r.Context(), req.Axis)
	})
}

func (s *Server) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetPrimary(r.Context(), req.Value)
	})
}

func (s *Server) handleSetSecondary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetSecondary(r.Context(), req.Value)
	})
}

func (s *Server) handleSetPageSize(w http.ResponseWriter, r *http.Request) {
	size := intField(decodeFields(r), "pageSize", models.DefaultPageSize, 1)
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetPageSize(r.Context(), size)
	})
}

func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	page := intField(decodeFields(r), "page", 1, 1)
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.GoToPage(r.Context(), page)
	})
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.NextPage(r.Context())
	})
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.PrevPage(r.Context())
	})
}

func (s *Server) handleSetFavoritesOnly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.SetFavoritesOnly(r.Context(), req.Enabled)
	})
}

func (s *Server) handleToggleFavoritesOnly(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.ToggleFavoritesOnly(r.Context())
	})
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.AddTag(r.Context(), req.Tag)
	})
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the parameter escaped.
	tag := chi.URLParam(r, "tag")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(tag)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tag = unescaped
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.RemoveTag(r.Context(), tag)
	})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.ToggleTheme(r.Context())
	})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}

	var favorite bool
	v, err := s.apply(func(c *library.Controller) (library.View, error) {
		var (
			v   library.View
			err error
		)
		favorite, v, err = c.ToggleFavorite(r.Context(), id)
		return v, err
	})
	if err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorite": favorite,
		"view":     v,
	})
}

func (s *Server) handleFocusSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(w, r)
	if !ok {
		return
	}
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.FocusSimilar(r.Context(), id)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var imported int
	v, err := s.apply(func(c *library.Controller) (library.View, error) {
		var (
			v   library.View
			err error
		)
		v, imported, err = c.Import(r.Context(), data, models.EventImport)
		return v, err
	})
	if err != nil {
		writeActionError(w, err)
		return
	}

	log.Info().Int("count", imported).Msg("Imported prompts")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
		"view":     v,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, err := s.controller.Export()
	s.mu.Unlock()
	if err != nil {
		writeActionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="prompts.json"`)
	w.Write(data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	count := intField(decodeFields(r), "count", library.DefaultGenerate, library.MinGenerate)

	var generated int
	v, err := s.apply(func(c *library.Controller) (library.View, error) {
		var (
			v   library.View
			err error
		)
		v, generated, err = c.Generate(r.Context(), count, nil)
		return v, err
	})
	if err != nil {
		writeActionError(w, err)
		return
	}

	log.Info().Int("count", generated).Msg("Generated prompts")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated": generated,
		"view":      v,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, func(c *library.Controller) (library.View, error) {
		return c.Clear(r.Context())
	})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	events, err := s.storage.ListEvents(r.Context(), limit)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := s.storage.Ping(ctx)

	response := map[string]interface{}{
		"connected": err == nil,
		"timestamp": time.Now().Unix(),
	}

	if err != nil {
		response["error"] = err.Error()
		log.Warn().Err(err).Msg("Storage ping failed")
	}

	writeJSON(w, http.StatusOK, response)
}

// respondView runs action and writes the resulting view or the error.
func (s *Server) respondView(w http.ResponseWriter, action func(c *library.Controller) (library.View, error)) {
	v, err := s.apply(action)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// promptID parses the {id} URL parameter, writing a 400 when it is invalid.
func promptID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid prompt id %q", raw))
		return 0, false
	}
	return id, true
}

// decodeRequest decodes a JSON body into v, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// decodeFields decodes a JSON object body without failing the request.
// An empty or malformed body decodes as an empty object.
func decodeFields(r *http.Request) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		if !errors.Is(err, io.EOF) {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Ignoring malformed request body")
		}
		return nil
	}
	return fields
}

// intField reads a loosely typed number from fields. A missing or null
// field gives missing, a value that is not a number gives invalid.
func intField(fields map[string]json.RawMessage, name string, missing, invalid int) int {
	raw := bytes.TrimSpace(fields[name])
	if len(raw) == 0 || string(raw) == "null" {
		return missing
	}
	return library.CoerceInt(raw, invalid)
}

// statusFor maps library errors to HTTP status codes.
func statusFor(err error) int {
	var importErr *library.ImportError
	switch {
	case errors.As(err, &importErr), errors.Is(err, library.ErrInvalidAxis):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeActionError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// requestLogger logs one line per request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
