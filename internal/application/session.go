package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/log"
)

// DefaultInputName используется, если модель не объявила входов.
const DefaultInputName = "input"

// ModelSession хранит загруженную модель с разрешёнными именами входа и выхода.
// Держатели сессии берут её через SessionManager.Acquire и обязаны вызвать release.
type ModelSession struct {
	ID            string
	Version       uint64
	InputName     string
	OutputNames   []string
	OutputName    string
	Probabilities bool
	NumClasses    int // 0, если размер класса динамический
	LoadedAt      time.Time

	model port.Model

	// holders держат RLock, вывод из обращения берёт Lock
	mu     sync.RWMutex
	closed bool
}

func newModelSession(model port.Model, version uint64) (*ModelSession, error) {
	inputName := DefaultInputName
	if inputs := model.Inputs(); len(inputs) > 0 && inputs[0].Name != "" {
		inputName = inputs[0].Name
	}

	outputs := model.Outputs()
	if len(outputs) == 0 {
		return nil, errors.New("model declares no outputs")
	}
	names := make([]string, 0, len(outputs))
	for _, o := range outputs {
		names = append(names, o.Name)
	}
	outputName, probabilities := ResolveOutputName(names)

	numClasses := 0
	for _, o := range outputs {
		if o.Name == outputName && len(o.Shape) > 0 {
			if last := o.Shape[len(o.Shape)-1]; last > 0 {
				numClasses = int(last)
			}
		}
	}

	return &ModelSession{
		ID:            uuid.NewString(),
		Version:       version,
		InputName:     inputName,
		OutputNames:   names,
		OutputName:    outputName,
		Probabilities: probabilities,
		NumClasses:    numClasses,
		LoadedAt:      time.Now(),
		model:         model,
	}, nil
}

// retire ждёт, пока все держатели отпустят сессию, и закрывает модель.
func (s *ModelSession) retire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.model.Close()
}

// SessionManager владеет единственной текущей сессией модели.
// Перезагрузка публикует новую сессию атомарной заменой указателя.
type SessionManager struct {
	loader port.ModelLoader
	status port.StatusPublisher
	logger *slog.Logger

	// reloadMu упорядочивает Load/Reload/Close
	reloadMu sync.Mutex
	source   *entity.ModelSource
	version  uint64

	current   atomic.Pointer[ModelSession]
	reloading atomic.Bool
}

// NewSessionManager создаёт менеджер без загруженной модели
func NewSessionManager(loader port.ModelLoader, status port.StatusPublisher) *SessionManager {
	return &SessionManager{
		loader: loader,
		status: status,
		logger: log.With("component", "session"),
	}
}

// Ready сообщает, что сессия опубликована и перезагрузка не идёт. Без блокировок.
func (m *SessionManager) Ready() bool {
	return !m.reloading.Load() && m.current.Load() != nil
}

// Current возвращает текущую сессию или nil
func (m *SessionManager) Current() *ModelSession {
	return m.current.Load()
}

// Load загружает модель из src и делает её текущей
func (m *SessionManager) Load(ctx context.Context, src entity.ModelSource) (*ModelSession, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	m.source = &src
	return m.swap(ctx)
}

// Reload заново загружает модель из последнего источника.
// Вызовы, уже взявшие старую сессию, дорабатывают на ней.
func (m *SessionManager) Reload(ctx context.Context) (*ModelSession, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	if m.source == nil {
		err := entity.NewError(entity.ErrModelLoad, "reload", errors.New("no model source configured"))
		m.status.PublishStatus(entity.ErrorStatus(entity.Reason(err)))
		return nil, err
	}
	return m.swap(ctx)
}

// swap строит новую сессию и публикует её. Вызывается под reloadMu.
func (m *SessionManager) swap(ctx context.Context) (*ModelSession, error) {
	m.reloading.Store(true)
	m.status.PublishStatus(entity.StatusLoadingModel)

	old := m.current.Load()
	m.version++
	started := time.Now()

	model, err := m.loader.Load(ctx, *m.source)
	if err != nil {
		return nil, m.fail(old, err)
	}
	session, err := newModelSession(model, m.version)
	if err != nil {
		_ = model.Close()
		return nil, m.fail(old, err)
	}

	m.current.Store(session)
	m.reloading.Store(false)

	m.logger.Info("model session published",
		"session_id", session.ID,
		"version", session.Version,
		"input", session.InputName,
		"outputs", session.OutputNames,
		"output", session.OutputName,
		"probabilities", session.Probabilities,
		"classes", session.NumClasses,
		"duration", time.Since(started),
	)
	m.status.PublishStatus(entity.StatusReady)

	if old != nil {
		if err := old.retire(); err != nil {
			m.logger.Warn("close retired session", "session_id", old.ID, "error", err)
		}
	}
	return session, nil
}

// fail снимает готовность после неудачной загрузки. Повторов нет: только явный Reload.
func (m *SessionManager) fail(old *ModelSession, err error) error {
	m.current.Store(nil)
	m.reloading.Store(false)

	if !errors.Is(err, entity.ErrModelLoad) {
		err = entity.NewError(entity.ErrModelLoad, "load", err)
	}
	m.logger.Error("model load failed", "version", m.version, "error", err)
	m.status.PublishStatus(entity.ErrorStatus(entity.Reason(err)))

	if old != nil {
		if cerr := old.retire(); cerr != nil {
			m.logger.Warn("close retired session", "session_id", old.ID, "error", cerr)
		}
	}
	return err
}

// Acquire возвращает текущую сессию и функцию освобождения.
// Пока сессия взята, она не будет закрыта, даже если опубликована новая.
func (m *SessionManager) Acquire() (*ModelSession, func(), error) {
	for {
		s := m.current.Load()
		if s == nil {
			return nil, nil, entity.ErrSessionNotReady
		}
		s.mu.RLock()
		if s.closed {
			// сессию успели заменить, берём новую
			s.mu.RUnlock()
			continue
		}
		var once sync.Once
		return s, func() { once.Do(s.mu.RUnlock) }, nil
	}
}

// AcquireReady как Acquire, но отказывает, пока идёт перезагрузка.
// Используется фоновым циклом камеры.
func (m *SessionManager) AcquireReady() (*ModelSession, func(), error) {
	if m.reloading.Load() {
		return nil, nil, entity.ErrSessionNotReady
	}
	s, release, err := m.Acquire()
	if err != nil {
		return nil, nil, err
	}
	if m.reloading.Load() {
		release()
		return nil, nil, entity.ErrSessionNotReady
	}
	return s, release, nil
}

// Run выполняет модель сессии s на тензоре. s должна быть взята через Acquire.
func (m *SessionManager) Run(ctx context.Context, s *ModelSession, tensor *entity.Tensor) (entity.OutputMap, error) {
	if s == nil {
		return nil, entity.ErrSessionNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, entity.NewError(entity.ErrInference, "run", err)
	}

	outputs, err := s.model.Run(ctx, s.InputName, tensor)
	if err != nil {
		if errors.Is(err, entity.ErrInference) {
			return nil, err
		}
		return nil, entity.NewError(entity.ErrInference, "run", err)
	}
	return outputs, nil
}

// Close закрывает текущую сессию, дождавшись её держателей
func (m *SessionManager) Close() error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	old := m.current.Swap(nil)
	if old == nil {
		return nil
	}
	return old.retire()
}
