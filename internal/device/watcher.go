package device

import (
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 500 * time.Millisecond

// Watcher は /dev/input の変化を監視し、まとめて通知する
type Watcher struct {
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	stopChan chan struct{}
}

// NewWatcher は dir の監視を開始する
func NewWatcher(dir string) (*Watcher, error) {
	if dir == "" {
		dir = DefaultDevRoot
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	log.Debugf("ディレクトリ監視を開始: %s", dir)

	w := &Watcher{
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	go w.watchEvents()
	return w, nil
}

// Changes はデバイスノードの追加・削除があったときに通知される
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *Watcher) Close() error {
	close(w.stopChan)
	return w.watcher.Close()
}

func isEventNode(name string) bool {
	base := name[strings.LastIndex(name, "/")+1:]
	return strings.HasPrefix(base, "event")
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// watchEvents は連続したイベントを watchDebounce の間まとめてから通知する
func (w *Watcher) watchEvents() {
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-w.stopChan:
			timer.Stop()
			return

		case <-timer.C:
			if pending {
				pending = false
				w.notify()
			}

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isEventNode(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Chmod) {
				log.Debugf("ファイルシステムイベント: %s %s", ev.Op, ev.Name)
				if !pending {
					pending = true
					timer.Reset(watchDebounce)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("ファイルシステム監視エラー: %v", err)
		}
	}
}
