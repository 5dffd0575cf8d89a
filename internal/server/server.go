// Package server hosts the local dashboard and its JSON API.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/avesohel/replypilot/internal/database"
	"github.com/avesohel/replypilot/internal/pipeline"
	"github.com/avesohel/replypilot/internal/platform"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// DefaultUser is the settings owner in single-user deployments.
const DefaultUser = "default"

const digestDays = 7

// Server is the dashboard HTTP server.
type Server struct {
	db    *database.DB
	pipe  *pipeline.Pipeline
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a server. pipe may be nil; the test-reply endpoint then
// returns 503.
func New(db *database.DB, pipe *pipeline.Pipeline) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "digest.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pipe: pipe, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/digest", s.handleDigest)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/logs", s.handleLogs)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/test-reply", s.handleTestReply)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	logs, err := s.db.GetRecentLogs(50)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Stats": stats,
		"Logs":  logs,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := BuildDigest(s.db, digestDays)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "digest.html", map[string]any{
		"Digest": digest,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	logs, err := s.db.GetRecentLogs(limit)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []database.ReplyLogEntry{}
	}
	writeJSON(w, logs)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = DefaultUser
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.db.GetOrCreateSettings(userID)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, settings)

	case http.MethodPost:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		settings, err := s.db.GetOrCreateSettings(userID)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := database.ApplySettingsPatch(settings, patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.db.UpdateSettings(settings); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, settings)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTestReply runs a comment through the pipeline without posting, so
// settings changes can be tried out safely.
func (s *Server) handleTestReply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		ChannelID string `json:"channel_id"`
		ContentID string `json:"content_id"`
		Comment   string `json:"comment"`
		Author    string `json:"author"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Comment == "" {
		http.Error(w, "Invalid JSON body; 'comment' is required", http.StatusBadRequest)
		return
	}
	if s.pipe == nil {
		http.Error(w, "Reply pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	ch, err := s.resolveChannel(body.ChannelID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	author := body.Author
	if author == "" {
		author = "test-viewer"
	}
	out, err := s.pipe.ProcessComment(r.Context(), pipeline.Input{
		Channel: ch,
		Comment: platform.Comment{
			ID:         "test-" + uuid.NewString(),
			ContentID:  body.ContentID,
			AuthorName: author,
			Text:       body.Comment,
		},
		Post: false,
	})
	if err != nil {
		log.Printf("Test reply failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) resolveChannel(platformID string) (*database.Channel, error) {
	if platformID != "" {
		ch, err := s.db.GetChannelByPlatformID(platformID)
		if err != nil {
			return nil, fmt.Errorf("looking up channel: %w", err)
		}
		if ch == nil {
			return nil, fmt.Errorf("unknown channel %q", platformID)
		}
		return ch, nil
	}

	channels, err := s.db.ListAllChannels()
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	if len(channels) > 0 {
		return &channels[0], nil
	}
	// no connected channel yet: synthesize one so test replies still work
	return &database.Channel{UserID: DefaultUser, PlatformID: "test-channel"}, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port, bound to localhost.
func Serve(ctx context.Context, db *database.DB, pipe *pipeline.Pipeline, port int) error {
	srv, err := New(db, pipe)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()

	log.Printf("Dashboard listening on http://%s", addr)
	err = httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
