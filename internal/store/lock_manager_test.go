// internal/store/lock_manager_test.go
package store

import (
	"sync"
	"testing"
)

func TestLockManager_SameLockPerStory(t *testing.T) {
	lm := NewLockManager()
	defer lm.Stop()

	a := lm.GetStoryLock("story_a")
	if a != lm.GetStoryLock("story_a") {
		t.Error("同一小说应返回同一把锁")
	}
	if a == lm.GetStoryLock("story_b") {
		t.Error("不同小说的锁应相互独立")
	}
}

func TestLockManager_SerializesWrites(t *testing.T) {
	lm := NewLockManager()
	defer lm.Stop()

	// 并发写同一小说时排队执行，计数不丢失
	const writers = 64
	counter := 0

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			lm.WithStoryLock("story", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != writers {
		t.Errorf("计数: got %d, want %d", counter, writers)
	}
}

func TestLockManager_GetAndCleanupConcurrently(t *testing.T) {
	lm := NewLockManager()
	defer lm.Stop()

	// TTL 设为零让每轮清理都触及最近使用时间；
	// 获取路径与清理并发执行时对它的读写必须是安全的
	lm.lockTTL = 0

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				lm.GetStoryLock("story")
			}
		}
	}()

	for i := 0; i < 200; i++ {
		lm.cleanupExpired()
	}
	close(stop)
	wg.Wait()

	// 回收后再取仍能得到可用的锁
	lock := lm.GetStoryLock("story")
	lock.Lock()
	lock.Unlock()
}

func TestLockManager_CatalogLock(t *testing.T) {
	lm := NewLockManager()
	defer lm.Stop()

	const writers = 32
	counter := 0

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			lm.WithCatalogLock(func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != writers {
		t.Errorf("计数: got %d, want %d", counter, writers)
	}
}
