package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/config"
	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/router"
	"github.com/char5742/octopus/internal/transport"
)

// RouterService はルーターとその周辺リソースのライフサイクルを管理する構造体
type RouterService struct {
	res         *config.Resolved
	statusMutex sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	router      *router.Router
}

// NewRouterService は新しいルーターサービスを作成する
func NewRouterService(res *config.Resolved) *RouterService {
	return &RouterService{res: res}
}

// Start はデバイスの監視とルーティングを開始する
func (s *RouterService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("サービスは既に実行中です")
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var output router.Output
	if s.res.HasLocalClient() {
		out, err := device.CreateOutput(device.DefaultOutputName)
		if err != nil {
			return err
		}
		closers = append(closers, func() { out.Close() })
		output = out
	}

	var sender router.Sender
	if s.res.HasRemoteClient() {
		snd, err := transport.NewSender(s.res.Network)
		if err != nil {
			cleanup()
			return err
		}
		closers = append(closers, func() { snd.Close() })
		sender = snd
	}

	var hotplug <-chan struct{}
	if w, err := device.NewWatcher(device.DefaultDevRoot); err != nil {
		log.Warnf("デバイス監視を開始できませんでした。定期スキャンのみで動作します: %v", err)
	} else {
		closers = append(closers, func() { w.Close() })
		hotplug = w.Changes()
	}

	manager := device.NewManager(s.res.Devices)
	devices := make([]router.Device, 0, len(manager.Sessions()))
	for _, sess := range manager.Sessions() {
		devices = append(devices, sess)
	}

	r, err := router.New(router.Config{
		Devices:        devices,
		Mappings:       s.res.Mappings,
		Clients:        s.res.Clients,
		Output:         output,
		Sender:         sender,
		Frames:         manager.Frames(),
		Rescan:         manager.Rescan,
		Hotplug:        hotplug,
		RescanInterval: s.res.RescanInterval,
	})
	if err != nil {
		cleanup()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.router = r
	s.err = nil
	s.running = true

	go func() {
		err := r.Run(ctx)
		// セッションはルーターのゴルーチンが所有しているので Run の後に閉じる
		manager.Close()
		cleanup()

		s.statusMutex.Lock()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.err = err
			log.Errorf("ルーターが停止しました: %v", err)
		}
		s.running = false
		close(s.done)
		s.statusMutex.Unlock()
	}()

	return nil
}

// Stop はルーターを停止し、終了を待つ
func (s *RouterService) Stop() error {
	s.statusMutex.RLock()
	running := s.running
	cancel := s.cancel
	done := s.done
	s.statusMutex.RUnlock()

	if !running {
		return fmt.Errorf("サービスは実行されていません")
	}
	cancel()
	<-done
	return s.Err()
}

// IsRunning はサービスが実行中かどうかを返す
func (s *RouterService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// Done はルーターが終了すると閉じられる
func (s *RouterService) Done() <-chan struct{} {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.done
}

// Err はルーターが致命的なエラーで停止した場合にそのエラーを返す
func (s *RouterService) Err() error {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.err
}

// Status はルーターの最新スナップショットを返す
func (s *RouterService) Status() (router.Status, bool) {
	s.statusMutex.RLock()
	r := s.router
	s.statusMutex.RUnlock()
	if r == nil {
		return router.Status{}, false
	}
	return r.Status(), true
}

// RequestSwitch はクライアント切り替えをルーターに依頼する
func (s *RouterService) RequestSwitch(clientIndex int) error {
	s.statusMutex.RLock()
	r := s.router
	running := s.running
	s.statusMutex.RUnlock()
	if r == nil || !running {
		return fmt.Errorf("サービスは実行されていません")
	}
	return r.RequestSwitch(clientIndex)
}
