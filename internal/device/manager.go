package device

import (
	"os"

	log "github.com/sirupsen/logrus"
)

const evdevOpenFlags = os.O_RDONLY

// Manager は設定済みデバイスのセッションを管理する。
// Rescan と Close はルーターのゴルーチンから呼ぶ。
type Manager struct {
	sessions []*Session
	frames   chan Frame
	sysRoot  string
	devRoot  string
}

// NewManager は記述子ごとにセッションを作る。実際の接続は Rescan で行う。
func NewManager(descs []Descriptor) *Manager {
	m := &Manager{
		frames:  make(chan Frame, 64),
		sysRoot: DefaultSysRoot,
		devRoot: DefaultDevRoot,
	}
	for _, d := range descs {
		m.sessions = append(m.sessions, newSession(d))
	}
	return m
}

// Sessions は宣言順のセッション一覧を返す
func (m *Manager) Sessions() []*Session {
	return m.sessions
}

// Frames は全デバイスのフレームが届くチャネル
func (m *Manager) Frames() <-chan Frame {
	return m.frames
}

// Rescan は非アクティブなデバイスを探して接続する
func (m *Manager) Rescan() {
	for _, s := range m.sessions {
		if s.Active() {
			continue
		}
		path, name, ok := Match(m.sysRoot, m.devRoot, s.desc)
		if !ok {
			continue
		}
		if err := s.activate(path, name, m.frames); err != nil {
			log.WithField("device", s.desc.String()).Warnf("デバイスの接続に失敗しました: %v", err)
			continue
		}
		log.WithFields(log.Fields{
			"device": s.desc.Index,
			"path":   path,
			"name":   s.Name(),
		}).Info("デバイスを接続しました")
	}
}

// Close はすべてのセッションを閉じる
func (m *Manager) Close() {
	for _, s := range m.sessions {
		s.Deactivate()
	}
}
