package storage

import (
	"sync"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

// Subscription получает последние значения статуса и результата.
// Каналы держат одно значение: новое вытесняет непрочитанное старое.
type Subscription struct {
	Statuses <-chan entity.Status
	Results  <-chan entity.ClassificationResult

	statuses chan entity.Status
	results  chan entity.ClassificationResult
	bus      *MemoryResultBus
}

// Close отписывается от шины
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// MemoryResultBus хранит только последний статус и последний результат
type MemoryResultBus struct {
	mu     sync.RWMutex
	status entity.Status
	result entity.ClassificationResult
	subs   map[*Subscription]struct{}
	closed bool
}

// NewMemoryResultBus создаёт шину со статусом Initializing
func NewMemoryResultBus() *MemoryResultBus {
	return &MemoryResultBus{
		status: entity.StatusInitializing,
		subs:   make(map[*Subscription]struct{}),
	}
}

// PublishStatus заменяет текущий статус
func (b *MemoryResultBus) PublishStatus(status entity.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = status
	for sub := range b.subs {
		offerLatest(sub.statuses, status)
	}
}

// PublishResult заменяет последний результат
func (b *MemoryResultBus) PublishResult(result entity.ClassificationResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result = result
	for sub := range b.subs {
		offerLatest(sub.results, result)
	}
}

// Status возвращает последний статус
func (b *MemoryResultBus) Status() entity.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Result возвращает последний результат
func (b *MemoryResultBus) Result() entity.ClassificationResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.result
}

// Subscribe создаёт подписку. После Close шины каналы подписки закрыты.
func (b *MemoryResultBus) Subscribe() *Subscription {
	statuses := make(chan entity.Status, 1)
	results := make(chan entity.ClassificationResult, 1)
	sub := &Subscription{
		Statuses: statuses,
		Results:  results,
		statuses: statuses,
		results:  results,
		bus:      b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(statuses)
		close(results)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close закрывает все подписки
func (b *MemoryResultBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.statuses)
		close(sub.results)
		delete(b.subs, sub)
	}
}

func (b *MemoryResultBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.statuses)
	close(sub.results)
}

// offerLatest кладёт значение в канал на одно место, вытесняя старое.
// Вызывается под b.mu, поэтому писатель у канала один.
func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Проверка реализации интерфейса
var _ port.ResultBus = (*MemoryResultBus)(nil)
