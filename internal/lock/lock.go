// Package lock сериализует запись в одну партицию очереди (отделение + день).
package lock

import (
	"context"
	"errors"
)

// ErrLockTimeout возвращается, если блокировку не удалось получить до отмены контекста.
var ErrLockTimeout = errors.New("lock: не удалось получить блокировку")

// PartitionLocker выдаёт эксклюзивную блокировку по ключу.
// Вызывающий обязан вызвать unlock ровно один раз.
type PartitionLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
