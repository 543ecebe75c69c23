package services

import "sync"

// imeiLock сериализует все мутации очереди одного IMEI.
// Два админа, переставляющие одну очередь конкурентно, не должны
// получить дубликаты или дыры в позициях: транзакция БД дает
// атомарность, а этот замок - взаимное исключение на время пересчета.
type imeiLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newIMEILock() *imeiLock {
	return &imeiLock{locks: make(map[string]*sync.Mutex)}
}

// Lock блокирует очередь IMEI и возвращает функцию разблокировки
func (l *imeiLock) Lock(imei string) func() {
	l.mu.Lock()
	m, ok := l.locks[imei]
	if !ok {
		m = &sync.Mutex{}
		l.locks[imei] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
