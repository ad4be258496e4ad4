// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"clipguard/internal/detector"
	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
	"clipguard/internal/registry"
	"clipguard/internal/sampler"
	"clipguard/internal/store"
	"clipguard/internal/trace"
)

// SourceOpener resolves a clip path into a playable source.
type SourceOpener func(path string) (sampler.Source, error)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type CheckMessage struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	TraceID string `json:"trace_id,omitempty"`
}

type VerdictMessage struct {
	Type        string `json:"type"`
	Path        string `json:"path"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Distance    *int   `json:"distance,omitempty"`
	Cached      bool   `json:"cached"`
}

type BlockAddedMessage struct {
	Type        string    `json:"type"`
	Fingerprint string    `json:"fingerprint"`
	Origin      string    `json:"origin"`
	CreatedAt   time.Time `json:"created_at"`
}

type BlockRemovedMessage struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
}

type BlocklistClearedMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// REST payloads.
type recordJSON struct {
	Fingerprint string    `json:"fingerprint"`
	Origin      string    `json:"origin"`
	CreatedAt   time.Time `json:"created_at"`
}

type matchJSON struct {
	recordJSON
	Distance int `json:"distance"`
}

type verdictJSON struct {
	Status      string     `json:"status"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Match       *matchJSON `json:"match,omitempty"`
	Cached      bool       `json:"cached"`
}

type addRequest struct {
	Fingerprint string `json:"fingerprint"`
	Origin      string `json:"origin,omitempty"`
}

type pathRequest struct {
	Path string `json:"path"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	det   *detector.Detector
	store *store.Store
	open  SourceOpener

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter

	// watchers cache one verdict per clip path behind a cheap preview
	// gate, so repeated checks of an unchanged clip skip the pipeline.
	wmu      sync.Mutex
	watchers map[string]*detector.Watcher
}

// New creates a new server. It subscribes itself to the store so every
// connected client sees blocklist changes as they commit.
func New(det *detector.Detector, st *store.Store, open SourceOpener) *Server {
	s := &Server{
		det:        det,
		store:      st,
		open:       open,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		watchers:   make(map[string]*detector.Watcher),
	}
	st.Subscribe(s)
	return s
}

// watcherFor returns the per-path watcher, creating it on first use.
func (s *Server) watcherFor(path string) (*detector.Watcher, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if w, ok := s.watchers[path]; ok {
		return w, nil
	}
	src, err := s.open(path)
	if err != nil {
		return nil, err
	}
	w := s.det.NewWatcher(src)
	s.watchers[path] = w
	return w, nil
}

// invalidateWatchers drops every cached verdict; a blocklist change can
// flip any of them.
func (s *Server) invalidateWatchers() {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, w := range s.watchers {
		w.Invalidate()
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/blocklist", s.handleList)
	mux.HandleFunc("POST /api/blocklist", s.handleAdd)
	mux.HandleFunc("DELETE /api/blocklist", s.handleClear)
	mux.HandleFunc("DELETE /api/blocklist/{fingerprint}", s.handleRemove)
	mux.HandleFunc("POST /api/check", s.handleCheck)
	mux.HandleFunc("POST /api/block", s.handleBlock)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	fp, err := fingerprint.Parse(req.Fingerprint)
	if err != nil {
		writeError(w, err)
		return
	}

	origin := registry.OriginManual
	if req.Origin == string(registry.OriginAutomatic) {
		origin = registry.OriginAutomatic
	}

	added, err := s.store.Add(r.Context(), registry.Record{Fingerprint: fp, Origin: origin})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"fingerprint": string(fp), "added": added})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	fp, err := fingerprint.Parse(r.PathValue("fingerprint"))
	if err != nil {
		writeError(w, err)
		return
	}

	removed, err := s.store.Remove(r.Context(), fp)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]any{"removed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	path, err := decodePath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	watcher, err := s.watcherFor(path)
	if err != nil {
		writeError(w, err)
		return
	}

	v, cached, err := watcher.Check(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := toVerdictJSON(v)
	out.Cached = cached
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	src, err := s.openPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fp, added, err := s.det.Block(r.Context(), src, registry.OriginManual)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"fingerprint": string(fp), "added": added})
}

func (s *Server) openPath(r *http.Request) (sampler.Source, error) {
	path, err := decodePath(r)
	if err != nil {
		return nil, err
	}
	return s.open(path)
}

func decodePath(r *http.Request) (string, error) {
	var req pathRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	if req.Path == "" {
		return "", errors.New(errors.CodeInvalidInput, "path is required")
	}
	return req.Path, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "check":
			var check CheckMessage
			if err := json.Unmarshal(msg, &check); err != nil {
				continue
			}
			// Extract trace_id from message or create new trace context
			ctx := baseCtx
			if check.TraceID != "" {
				tc := trace.Context{TraceID: check.TraceID, SpanID: ""}
				tc = trace.NewChild(tc)
				ctx = trace.WithContext(ctx, tc)
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.handleCheckMessage(ctx, conn, check.Path)
		}
	}
}

func (s *Server) handleCheckMessage(ctx context.Context, conn *websocket.Conn, path string) {
	ctx, span := trace.StartSpan(ctx, "handle_check_message")
	defer span.End()

	log := trace.Logger(ctx)
	log.Info("check requested", "path", path)

	watcher, err := s.watcherFor(path)
	if err == nil {
		var v detector.Verdict
		var cached bool
		v, cached, err = watcher.Check(ctx)
		if err == nil {
			out := VerdictMessage{Type: "verdict", Path: path, Status: v.Status.String(), Fingerprint: string(v.Fingerprint), Cached: cached}
			if v.Match != nil {
				d := v.Match.Distance
				out.Distance = &d
			}
			_ = wsjson.Write(ctx, conn, out)
			return
		}
	}

	span.SetAttr("error", err.Error())
	log.Error("check error", "path", path, "error", err)
	_ = wsjson.Write(ctx, conn, ErrorMessage{
		Type:    "error",
		Code:    errors.CodeOf(err).String(),
		Message: err.Error(),
	})
}

// BlockAdded implements store.Listener.
func (s *Server) BlockAdded(rec registry.Record) {
	s.invalidateWatchers()
	s.broadcast(BlockAddedMessage{
		Type:        "block_added",
		Fingerprint: string(rec.Fingerprint),
		Origin:      string(rec.Origin),
		CreatedAt:   rec.CreatedAt,
	})
}

// BlockRemoved implements store.Listener.
func (s *Server) BlockRemoved(fp fingerprint.Fingerprint) {
	s.invalidateWatchers()
	s.broadcast(BlockRemovedMessage{Type: "block_removed", Fingerprint: string(fp)})
}

// BlocklistCleared implements store.Listener.
func (s *Server) BlocklistCleared() {
	s.invalidateWatchers()
	s.broadcast(BlocklistClearedMessage{Type: "blocklist_cleared"})
}

// broadcast writes synchronously so each client observes changes in commit
// order; a stalled client is cut off by the write timeout.
func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
		_ = wsjson.Write(ctx, conn, msg)
		cancel()
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "decode request body")
	}
	return nil
}

func toRecordJSON(rec registry.Record) recordJSON {
	return recordJSON{
		Fingerprint: string(rec.Fingerprint),
		Origin:      string(rec.Origin),
		CreatedAt:   rec.CreatedAt,
	}
}

func toVerdictJSON(v detector.Verdict) verdictJSON {
	out := verdictJSON{Status: v.Status.String(), Fingerprint: string(v.Fingerprint)}
	if v.Match != nil {
		out.Match = &matchJSON{recordJSON: toRecordJSON(v.Match.Record), Distance: v.Match.Distance}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.CodeSourceUnavailable:
		status = http.StatusNotFound
	case errors.CodeTimeout:
		status = http.StatusGatewayTimeout
	case errors.CodeQueueCleared:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"code":  errors.CodeOf(err).String(),
		"error": err.Error(),
	})
}
