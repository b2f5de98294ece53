package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/config"
	"github.com/char5742/octopus/internal/router"
)

// Controller はAPIから操作するルーターの機能
type Controller interface {
	Status() (router.Status, bool)
	RequestSwitch(clientIndex int) error
	IsRunning() bool
}

// Server はAPIサーバーを表す構造体
type Server struct {
	server  *http.Server
	cfg     *config.Config
	control Controller
	port    int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg *config.Config, control Controller, port int) *Server {
	return &Server{
		cfg:     cfg,
		control: control,
		port:    port,
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return mux
}

// Start はAPIサーバーを開始する
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.Handler(),
	}

	log.Infof("APIサーバーを開始します: %s", s.URL())
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// URL はステータスページのURLを返す
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d/api/status", s.port)
}

// Stop はAPIサーバーを停止する
func (s *Server) Stop() error {
	if s.server != nil {
		log.Info("APIサーバーを停止します...")
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warnf("JSONエンコードエラー: %v", err)
		}
	}
}

// writeError はエラーレスポンスを書き込む
func writeError(w http.ResponseWriter, status int, message string) {
	response := map[string]string{"error": message}
	writeJSON(w, status, response)
}
