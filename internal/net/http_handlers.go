package net

import (
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"playroom/server"
	"playroom/server/internal/model"
	"playroom/server/internal/net/ws"
)

type HTTPHandlerConfig struct {
	ClientDir  string
	Logger     *log.Logger
	AuthSecret string
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Users      any    `json:"users"`
			TickRate   int    `json:"tickRate"`
			Heartbeat  int64  `json:"heartbeatMillis"`
			Telemetry  any    `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Users:      hub.DiagnosticsSnapshot(),
			TickRate:   server.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  hub.TelemetrySnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/leaderboard", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			httpError(w, "missing mode", nethttp.StatusBadRequest)
			return
		}
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if value, err := strconv.Atoi(raw); err == nil && value > 0 {
				limit = value
			}
		}
		entries, err := hub.TopScores(r.Context(), mode, limit)
		if err != nil {
			logger.Printf("leaderboard read failed for mode %s: %v", mode, err)
			httpError(w, "leaderboard unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		payload := struct {
			Mode    string `json:"mode"`
			Entries any    `json:"entries"`
		}{Mode: mode, Entries: entries}
		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	joinHandler := nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		req := struct {
			Room     string `json:"room"`
			Mode     string `json:"mode"`
			Nickname string `json:"nickname"`
		}{}
		if r.Body != nil {
			defer r.Body.Close()
			decoder := json.NewDecoder(r.Body)
			if err := decoder.Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		if req.Mode == "" {
			req.Mode = string(model.ModeHub)
		}

		join, reason := hub.Join(req.Room, model.Mode(req.Mode), req.Nickname)
		if reason != "" {
			status := nethttp.StatusBadRequest
			if reason == model.RejectCapacity || reason == server.RejectModeMismatch {
				status = nethttp.StatusConflict
			}
			payload := struct {
				Reason string `json:"reason"`
			}{Reason: reason}
			data, _ := json.Marshal(payload)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write(data)
			return
		}

		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.Handle("/join", RequireToken(cfg.AuthSecret, joinHandler))

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.Handle("/ws", RequireToken(cfg.AuthSecret, nethttp.HandlerFunc(wsHandler.Handle)))

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
