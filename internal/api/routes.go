package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/router"
)

// ルートの設定
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealthCheck)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/devices", s.handleGetDevices)
	mux.HandleFunc("POST /api/clients/{index}/activate", s.handleActivateClient)
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ルーター状態取得ハンドラ
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.control.Status()
	if !ok || !s.control.IsRunning() {
		writeError(w, http.StatusServiceUnavailable, "ルーターは実行されていません")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// 設定取得ハンドラ。事前共有鍵は返さない。
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *s.cfg
	cfg.Clients = append(cfg.Clients[:0:0], cfg.Clients...)
	for i := range cfg.Clients {
		if cfg.Clients[i].Key != "" {
			cfg.Clients[i].Key = "********"
		}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// デバイス一覧取得ハンドラ
func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := device.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "デバイス一覧の取得に失敗しました: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// クライアント切り替えハンドラ
func (s *Server) handleActivateClient(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "クライアント番号が不正です")
		return
	}
	if err := s.control.RequestSwitch(index); err != nil {
		switch {
		case errors.Is(err, router.ErrUnknownClient):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, router.ErrBusy):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "client": index})
}
