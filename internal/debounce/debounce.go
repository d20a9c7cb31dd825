// Package debounce схлопывает серию сигналов об изменениях в один запуск
// после периода тишины.
package debounce

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Debouncer пересылает payload не раньше чем через quiet после последнего Signal.
// Запуск подавляется, если отпечаток состояния совпадает с отпечатком
// последнего пересланного запуска.
type Debouncer[T any] struct {
	quiet   time.Duration
	capture func() (T, string)
	forward func(T)
	logger  *zap.Logger

	// OnSuppressed вызывается, когда запуск подавлен из-за неизменного отпечатка
	OnSuppressed func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // номер актуального таймера
	last    string
	hasLast bool
	stopped bool
}

// New создает дебаунсер. capture должен атомарно вернуть текущее состояние и его отпечаток.
func New[T any](quiet time.Duration, capture func() (T, string), forward func(T), logger *zap.Logger) *Debouncer[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer[T]{
		quiet:   quiet,
		capture: capture,
		forward: forward,
		logger:  logger,
	}
}

// Signal сообщает об изменении и перезапускает таймер тишины
func (d *Debouncer[T]) Signal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Flush немедленно выполняет ожидающий запуск, если он есть
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	gen := d.gen
	d.mu.Unlock()

	d.fire(gen)
}

// Remember запоминает отпечаток запуска, выполненного в обход дебаунсера
func (d *Debouncer[T]) Remember(fingerprint string) {
	d.mu.Lock()
	d.last = fingerprint
	d.hasLast = true
	d.mu.Unlock()
}

// Forget сбрасывает запомненный отпечаток: следующий запуск не будет подавлен,
// даже если состояние совпадает с последним пересланным
func (d *Debouncer[T]) Forget() {
	d.mu.Lock()
	d.last = ""
	d.hasLast = false
	d.mu.Unlock()
}

// Stop отменяет ожидающий запуск; последующие сигналы игнорируются
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending сообщает, есть ли ожидающий запуск
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// таймер уже заменен новым сигналом или остановлен
	if gen != d.gen || d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil

	payload, fingerprint := d.capture()
	if d.hasLast && fingerprint == d.last {
		d.mu.Unlock()
		d.logger.Debug("debounced trigger suppressed, state unchanged")
		if d.OnSuppressed != nil {
			d.OnSuppressed()
		}
		return
	}
	d.last = fingerprint
	d.hasLast = true
	d.mu.Unlock()

	d.forward(payload)
}
