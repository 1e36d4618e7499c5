// internal/storage/watcher.go
package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// ChangeEvent 表示数据目录下的一次文件变更
type ChangeEvent struct {
	Path string `json:"path"`
	Op   string `json:"op"` // create / write / remove / rename
}

// Watcher 监听数据根目录，外部修改（管理脚本、手工编辑）发生时使对应缓存失效
// 事件经防抖聚合后再回调，避免编辑器多次写入触发的风暴
type Watcher struct {
	store    *FileStorage
	logger   *zap.Logger
	onChange func(ChangeEvent) // 可选，失效完成后通知（如 WebSocket 推送）

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	debounce    time.Duration
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewWatcher 创建缓存失效监听器
func NewWatcher(store *FileStorage, logger *zap.Logger, onChange func(ChangeEvent)) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:       store,
		logger:      logger,
		onChange:    onChange,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
}

// Start 启动监听，递归覆盖存储根目录下的所有子目录
// ctx 取消或调用 Stop 时退出
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	if err := w.addRecursive(w.store.BaseDir); err != nil {
		w.Stop()
		return err
	}

	w.logger.Debug("存储监听已启动", zap.String("root", w.store.BaseDir))
	go w.run(ctx)
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("监听错误", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	// 跳过原子写入的中间文件
	if filepath.Ext(path) == ".tmp" {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		// 新目录加入监听，新文件按写入处理
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Debug("添加监听目录失败", zap.String("path", path), zap.Error(err))
			}
			return
		}
		w.debounceInvalidate(path, "create")
	case ev.Op.Has(fsnotify.Write):
		w.debounceInvalidate(path, "write")
	case ev.Op.Has(fsnotify.Remove):
		w.debounceInvalidate(path, "remove")
	case ev.Op.Has(fsnotify.Rename):
		w.debounceInvalidate(path, "rename")
	}
}

func (w *Watcher) debounceInvalidate(path, op string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		onChange := w.onChange
		w.mu.Unlock()

		w.store.InvalidateCache(path)
		w.logger.Debug("外部修改，缓存已失效", zap.String("path", path), zap.String("op", op))

		if onChange != nil {
			onChange(ChangeEvent{Path: path, Op: op})
		}
	})
}

// Stop 停止监听并释放资源
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
