package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"i4.energy/across/atgw/at"
	"i4.energy/across/atgw/modem"
)

const (
	// maxResponseSize bounds the response collected for POST /at.
	maxResponseSize = 4096
	// maxBodySize bounds the body fetched by GET /http.
	maxBodySize = 64 * 1024
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Client *modem.Client
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /at", s.handleAT)
	mux.HandleFunc("POST /mqtt/publish", s.handlePublish)
	mux.HandleFunc("GET /http", s.handleHTTPGet)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// newRequestID returns a time-ordered id for a request and the command it
// issues.
func newRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// statusFor maps a command result to the HTTP status returned to the caller.
func statusFor(r modem.Result) int {
	switch r {
	case modem.ResultOK:
		return http.StatusOK
	case modem.ResultTimeout:
		return http.StatusGatewayTimeout
	case modem.ResultOutOfMemory:
		return http.StatusInsufficientStorage
	case modem.ResultClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// unavailable reports whether err means the command never reached a result:
// the caller gave up or the modem has been closed.
func unavailable(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, modem.ErrAlreadyClosed)
}

// errorStatus maps an error from a modem helper to an HTTP status.
func errorStatus(err error) int {
	if unavailable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// handleAT runs a raw AT command and returns whatever the modem answered.
func (s *Server) handleAT(w http.ResponseWriter, r *http.Request) {
	type ATRequest struct {
		Command   string `json:"command"`
		TimeoutMS int    `json:"timeout_ms"`
	}
	type ATResponse struct {
		ID       string `json:"id"`
		Result   string `json:"result"`
		Response string `json:"response"`
	}

	var req ATRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	command := strings.TrimRight(req.Command, at.CRLF)
	if command == "" {
		s.sendError(w, "'command' field is required", http.StatusBadRequest)
		return
	}
	if req.TimeoutMS < 0 {
		s.sendError(w, "'timeout_ms' must not be negative", http.StatusBadRequest)
		return
	}

	id := newRequestID()
	logger := s.Logger.With("request_id", id)

	cmd := &modem.Command{
		ID:      id,
		Data:    []byte(command + at.CRLF),
		Timeout: modem.Ticks(time.Duration(req.TimeoutMS) * time.Millisecond),
		Resp:    make([]byte, maxResponseSize),
	}
	err := s.Client.Exec(r.Context(), cmd)
	if err != nil && (unavailable(err) || cmd.Result() == modem.ResultPending) {
		logger.Error("AT command not completed", "error", err, "command", command)
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	logger.Info("AT command completed", "command", command, "result", cmd.Result().String())
	s.sendJSON(w, ATResponse{
		ID:       id,
		Result:   cmd.Result().String(),
		Response: string(cmd.Response()),
	}, statusFor(cmd.Result()))
}

// handlePublish publishes a message through the modem's MQTT link.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	type PublishRequest struct {
		Topic   string `json:"topic"`
		Payload string `json:"payload"`
		QoS     int    `json:"qos"`
		Retain  bool   `json:"retain"`
	}
	type PublishResponse struct {
		ID string `json:"id"`
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Topic == "" {
		s.sendError(w, "'topic' field is required", http.StatusBadRequest)
		return
	}
	if req.QoS < 0 || req.QoS > 2 {
		s.sendError(w, "'qos' must be 0, 1 or 2", http.StatusBadRequest)
		return
	}

	id := newRequestID()
	logger := s.Logger.With("request_id", id)

	if err := s.Client.PublishRaw(r.Context(), req.Topic, []byte(req.Payload), req.QoS, req.Retain); err != nil {
		logger.Error("Failed to publish MQTT message", "error", err, "topic", req.Topic)
		s.sendError(w, err.Error(), errorStatus(err))
		return
	}

	logger.Info("MQTT message published", "topic", req.Topic, "payload_length", len(req.Payload))
	s.sendJSON(w, PublishResponse{ID: id}, http.StatusOK)
}

// handleHTTPGet fetches a URL through the modem and relays the body.
func (s *Server) handleHTTPGet(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.sendError(w, "'url' query parameter is required", http.StatusBadRequest)
		return
	}

	id := newRequestID()
	logger := s.Logger.With("request_id", id)

	cmd, err := s.Client.HTTPGet(r.Context(), url, make([]byte, maxBodySize))
	if err != nil {
		logger.Error("HTTP fetch through modem failed", "error", err, "url", url)
		s.sendError(w, err.Error(), errorStatus(err))
		return
	}

	body := cmd.Response()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Request-Id", id)
	if total := cmd.ContentTotal(); total > 0 {
		w.Header().Set("X-Content-Total", strconv.Itoa(total))
	}
	if cmd.Truncated() {
		w.Header().Set("X-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)

	logger.Info("HTTP fetch completed", "url", url, "length", len(body), "truncated", cmd.Truncated())
}
