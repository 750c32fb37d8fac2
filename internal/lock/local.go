package lock

import (
	"context"
	"fmt"
	"sync"
)

// LocalLocker — блокировки по ключу внутри одного процесса.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker создаёт локальный менеджер блокировок.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key)
		})
	}, nil
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

// releaseSlot удаляет слот, когда на него никто не ссылается, чтобы map не росла.
func (l *LocalLocker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size нужен тестам.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
