package jobs

import "time"

// Clock — абстракция времени для детерминированного тестирования.
//
// Poller и executor зависят от Clock, а не от пакета time напрямую,
// поэтому в тестах ожидание между опросами не требует реальных задержек.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time

	// After возвращает канал, в который придёт сигнал через d.
	After(d time.Duration) <-chan time.Time
}

// realClock — Clock поверх пакета time.
type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock возвращает Clock на системном времени.
func RealClock() Clock {
	return realClock{}
}
