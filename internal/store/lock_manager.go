// internal/store/lock_manager.go
package store

import (
	"sync"
	"sync/atomic"
	"time"
)

// LockManager 统一的写入串行化管理器
// 目录文件与各小说的章节目录分别持锁：并发的管理端写入不再是"后写覆盖"，
// 同一小说（及目录文件）上的写操作排队执行
type LockManager struct {
	storyLocks map[string]*LockInfo
	catalog    sync.RWMutex
	globalLock sync.RWMutex
	lockTTL    time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// LockInfo 包装锁和相关信息
// 最近使用时间走原子访问：获取路径在读锁外刷新它，而清理轮询并发读取
type LockInfo struct {
	Mutex    *sync.RWMutex
	lastUsed atomic.Int64 // Unix 纳秒
}

func (li *LockInfo) touch() {
	li.lastUsed.Store(time.Now().UnixNano())
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		storyLocks: make(map[string]*LockInfo),
		lockTTL:    10 * time.Minute,
		stopCh:     make(chan struct{}),
	}

	go lm.cleanupLoop()
	return lm
}

// GetStoryLock 获取指定小说的锁（线程安全）
func (lm *LockManager) GetStoryLock(folderName string) *sync.RWMutex {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.storyLocks[folderName]; exists {
		lm.globalLock.RUnlock()
		lockInfo.touch()
		return lockInfo.Mutex
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if lockInfo, exists := lm.storyLocks[folderName]; exists {
		lockInfo.touch()
		return lockInfo.Mutex
	}

	lockInfo := &LockInfo{Mutex: &sync.RWMutex{}}
	lockInfo.touch()
	lm.storyLocks[folderName] = lockInfo
	return lockInfo.Mutex
}

// WithStoryLock 在小说写锁保护下执行操作
func (lm *LockManager) WithStoryLock(folderName string, fn func() error) error {
	lock := lm.GetStoryLock(folderName)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// WithCatalogLock 在目录文件写锁保护下执行操作
// 创建/删除小说同时修改目录文件和章节目录，需要先取目录锁再取小说锁，
// 所有调用方保持这一顺序以避免死锁
func (lm *LockManager) WithCatalogLock(fn func() error) error {
	lm.catalog.Lock()
	defer lm.catalog.Unlock()
	return fn()
}

// cleanupLoop 定期清理长时间未使用的小说锁
func (lm *LockManager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-lm.stopCh:
			return
		case <-ticker.C:
			lm.cleanupExpired()
		}
	}
}

func (lm *LockManager) cleanupExpired() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	now := time.Now()
	for folder, lockInfo := range lm.storyLocks {
		if now.Sub(time.Unix(0, lockInfo.lastUsed.Load())) > lm.lockTTL {
			// 仅在没有持有者时回收
			if lockInfo.Mutex.TryLock() {
				lockInfo.Mutex.Unlock()
				delete(lm.storyLocks, folder)
			}
		}
	}
}

// Stop 停止后台清理
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.stopCh) })
}
