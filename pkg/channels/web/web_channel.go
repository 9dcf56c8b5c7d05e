package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"shopmate/pkg/api"
	"shopmate/pkg/errs"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

const (
	maxChatBody  = 1 << 20
	maxAudioBody = 25 << 20
)

type WebConfig struct {
	Port int `json:"port"` // Default: 8000
	// AllowedOrigin is echoed in Access-Control-Allow-Origin. Default "*".
	AllowedOrigin string `json:"allowed_origin"`
}

// ChatRequest is the body of POST /api/chat and of every websocket frame.
type ChatRequest struct {
	Message   string         `json:"message"`
	TodoList  []api.TodoItem `json:"todo_list"`
	SessionID string         `json:"session_id,omitempty"`
}

// TTSRequest is the body of POST /api/chat/audio.
type TTSRequest struct {
	Text string `json:"text"`
}

// STTResponse is the body returned by POST /api/chat/transcribe.
type STTResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteJSONFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

// WebChannel serves the chat, speech and websocket endpoints used by the
// browser front end.
type WebChannel struct {
	config      WebConfig
	speech      api.Speech
	server      *http.Server
	listener    net.Listener
	connections map[string]*SafeConn // connection id -> socket
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig, speech api.Speech) *WebChannel {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	return &WebChannel{
		config:      cfg,
		speech:      speech,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler returns the HTTP routes bound to cc.
func (c *WebChannel) Handler(cc api.ChannelContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		c.handleChat(w, r, cc)
	})
	mux.HandleFunc("POST /api/chat/audio", c.handleAudio)
	mux.HandleFunc("POST /api/chat/transcribe", c.handleTranscribe)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, cc)
	})
	return c.cors(mux)
}

func (c *WebChannel) Start(cc api.ChannelContext) error {
	addr := fmt.Sprintf(":%d", c.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web channel listen on %s: %w", addr, err)
	}
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(cc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web API listening", "port", c.config.Port)

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	c.mu.Lock()
	for id, conn := range c.connections {
		conn.Close()
		delete(c.connections, id)
	}
	c.mu.Unlock()

	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.server.Shutdown(ctx)
	}
	return nil
}

func (c *WebChannel) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", c.config.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *WebChannel) handleChat(w http.ResponseWriter, r *http.Request, cc api.ChannelContext) {
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid chat request: " + err.Error()})
		return
	}

	resp := c.converse(r.Context(), cc, r.RemoteAddr, req)
	writeJSON(w, http.StatusOK, resp)
}

// converse runs one turn, assigning a session id when the caller has none.
func (c *WebChannel) converse(ctx context.Context, cc api.ChannelContext, userID string, req ChatRequest) api.ChatResponse {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	session := api.SessionContext{
		ChannelID: c.ID(),
		UserID:    userID,
		ChatID:    req.SessionID,
		Username:  "WebUser",
	}
	return cc.Converse(ctx, session, req.Message, req.TodoList)
}

func (c *WebChannel) handleAudio(w http.ResponseWriter, r *http.Request) {
	if c.speech == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "speech is not configured"})
		return
	}

	var req TTSRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid speech request: " + err.Error()})
		return
	}

	audio, err := c.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		slog.ErrorContext(r.Context(), "Speech synthesis failed", "error", err)
		status := http.StatusInternalServerError
		if errs.HasCode(err, errs.CodeInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Detail: fmt.Sprintf("Speech synthesis failed: %v", err)})
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=speech.mp3")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (c *WebChannel) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if c.speech == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "speech is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "missing 'audio' upload: " + err.Error()})
		return
	}
	defer file.Close()

	text, err := c.speech.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transcription error", "file", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: fmt.Sprintf("Transcription failed: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, STTResponse{Text: text})
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, cc api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	connID := uuid.NewString()
	// One conversation per socket unless the frame names another.
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = connID
	}

	c.mu.Lock()
	c.connections[connID] = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.connections, connID)
		c.mu.Unlock()
		conn.Close()
	}()

	slog.Debug("WS client connected", "conn", connID, "remote", r.RemoteAddr)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req ChatRequest
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			// Plain text frames carry just the message.
			req = ChatRequest{Message: string(msgBytes)}
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		resp := c.converse(r.Context(), cc, r.RemoteAddr, req)
		if err := conn.WriteJSONFrame(resp); err != nil {
			slog.Error("WS write failed", "conn", connID, "error", err)
			break
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
