// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听目录中指定文件的写入
type FileMonitor struct {
	watchDir string
	names    map[string]bool // 需要关注的文件名
	watcher  *fsnotify.Watcher
	lastMod  map[string]time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监听dir目录，只对names中的文件触发
func NewFileMonitor(dir string, names ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &FileMonitor{
		watchDir: dir,
		names:    set,
		watcher:  watcher,
		lastMod:  make(map[string]time.Time),
	}, nil
}

// Watch 阻塞直到ctx结束或watcher出错，文件修改时间变化后调用handler
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !m.names[filepath.Base(event.Name)] {
				continue
			}
			if m.changed(event.Name) {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// changed 同一次保存会产生多个事件，按修改时间去重
func (m *FileMonitor) changed(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod[path]) {
		return false
	}
	m.lastMod[path] = info.ModTime()
	return true
}
