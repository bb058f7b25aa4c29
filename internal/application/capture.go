package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/log"
)

// CaptureConfig задаёт параметры цикла камеры
type CaptureConfig struct {
	// Interval: пауза между концом одного цикла и началом следующего
	Interval time.Duration
	// StatusInterval: как часто обновлять тихий статус при той же метке
	StatusInterval time.Duration
}

// DefaultCaptureConfig возвращает значения по умолчанию (~1.2 кадра в секунду)
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Interval:       800 * time.Millisecond,
		StatusInterval: 900 * time.Millisecond,
	}
}

// FrameClassifier классифицирует кадр в тихом режиме
type FrameClassifier interface {
	ClassifyFrame(ctx context.Context, frame []byte) (entity.ClassificationResult, error)
}

// Readiness сообщает готовность сессии модели без блокировок
type Readiness interface {
	Ready() bool
}

// CaptureStats содержит счётчики цикла камеры
type CaptureStats struct {
	Cycles  uint64 // завершённые циклы захвата
	Skipped uint64 // тики, пропущенные из-за незавершённого цикла
	Dropped uint64 // результаты, отброшенные после остановки
}

// CaptureScheduler гоняет цикл "кадр -> классификация" по состояниям
// Idle -> Starting -> Active -> Stopping -> Idle.
type CaptureScheduler struct {
	cfg        CaptureConfig
	camera     port.Camera
	perms      port.PermissionChecker
	classifier FrameClassifier
	sessions   Readiness
	bus        port.ResultBus
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	state      entity.CaptureState
	gen        uint64 // растёт при каждом старте и остановке
	timer      *time.Timer
	cancelOpen context.CancelFunc
	waiting    bool // цикл ждёт готовности модели

	// память последнего тихого статуса
	lastLabel     string
	lastAnnounced time.Time

	// inFlight не пускает второй цикл, пока идёт первый
	inFlight atomic.Bool
	cycles   atomic.Uint64
	skipped  atomic.Uint64
	dropped  atomic.Uint64
}

// NewCaptureScheduler создаёт планировщик в состоянии Idle
func NewCaptureScheduler(
	cfg CaptureConfig,
	camera port.Camera,
	perms port.PermissionChecker,
	classifier FrameClassifier,
	sessions Readiness,
	bus port.ResultBus,
) *CaptureScheduler {
	def := DefaultCaptureConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	return &CaptureScheduler{
		cfg:        cfg,
		camera:     camera,
		perms:      perms,
		classifier: classifier,
		sessions:   sessions,
		bus:        bus,
		logger:     log.With("component", "capture"),
		now:        time.Now,
		state:      entity.CaptureIdle,
	}
}

// State возвращает текущее состояние цикла
func (s *CaptureScheduler) State() entity.CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats возвращает счётчики цикла
func (s *CaptureScheduler) Stats() CaptureStats {
	return CaptureStats{
		Cycles:  s.cycles.Load(),
		Skipped: s.skipped.Load(),
		Dropped: s.dropped.Load(),
	}
}

// Start включает камеру. Нужны разрешение на камеру и готовая модель,
// иначе остаёмся в Idle и публикуем причину.
func (s *CaptureScheduler) Start(ctx context.Context) error {
	if !s.sessions.Ready() {
		s.bus.PublishStatus(entity.StatusLoadingModel)
		return entity.ErrSessionNotReady
	}
	if !s.perms.CameraGranted(ctx) {
		err := entity.NewError(entity.ErrPermission, "camera", errors.New("camera access is not granted"))
		s.bus.PublishStatus(entity.ErrorStatus(entity.Reason(err)))
		return err
	}

	s.mu.Lock()
	switch s.state {
	case entity.CaptureIdle:
	case entity.CaptureStopping:
		s.mu.Unlock()
		return fmt.Errorf("capture is stopping")
	default:
		s.mu.Unlock()
		return nil
	}
	s.state = entity.CaptureStarting
	s.gen++
	gen := s.gen
	openCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelOpen = cancel
	s.mu.Unlock()

	s.logger.Info("camera starting", "gen", gen)
	s.bus.PublishStatus(entity.StatusCameraStarting)

	go func() {
		if err := s.camera.Open(openCtx); err != nil {
			s.cameraFailed(gen, err)
			return
		}
		s.cameraReady(gen)
	}()
	return nil
}

// cameraReady переводит Starting -> Active, когда камера открылась
func (s *CaptureScheduler) cameraReady(gen uint64) {
	s.mu.Lock()
	if s.state != entity.CaptureStarting || s.gen != gen {
		stale := s.state == entity.CaptureIdle
		s.mu.Unlock()
		if stale {
			// камера открылась уже после остановки
			_ = s.camera.Close()
		}
		return
	}
	s.state = entity.CaptureActive
	s.waiting = false
	s.resetSilentLocked()
	s.mu.Unlock()

	s.logger.Info("camera active", "gen", gen)
	s.bus.PublishStatus(entity.StatusCameraActive)

	// первый кадр сразу, дальше по таймеру
	go s.tick(gen)
}

// cameraFailed возвращает цикл в Idle после ошибки открытия камеры
func (s *CaptureScheduler) cameraFailed(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || (s.state != entity.CaptureStarting && s.state != entity.CaptureActive) {
		s.mu.Unlock()
		return
	}
	s.haltLocked()
	s.state = entity.CaptureIdle
	s.mu.Unlock()

	_ = s.camera.Close()
	s.logger.Error("camera failed", "gen", gen, "error", err)
	s.bus.PublishStatus(entity.ErrorStatus("camera: " + err.Error()))
}

// Stop останавливает цикл: таймер отменяется, незавершённый кадр
// дорабатывает, но его результат отбрасывается.
func (s *CaptureScheduler) Stop() {
	s.mu.Lock()
	if s.state == entity.CaptureIdle || s.state == entity.CaptureStopping {
		s.mu.Unlock()
		return
	}
	s.state = entity.CaptureStopping
	s.haltLocked()
	s.mu.Unlock()

	if err := s.camera.Close(); err != nil {
		s.logger.Warn("close camera", "error", err)
	}

	s.mu.Lock()
	s.state = entity.CaptureIdle
	s.mu.Unlock()

	s.logger.Info("camera stopped")
	if s.sessions.Ready() {
		s.bus.PublishStatus(entity.StatusReady)
	} else {
		s.bus.PublishStatus(entity.StatusCameraStopped)
	}
}

// Toggle включает камеру из Idle и выключает в остальных состояниях.
// Возвращает true, если цикл запускается.
func (s *CaptureScheduler) Toggle(ctx context.Context) (bool, error) {
	if s.State() == entity.CaptureIdle {
		if err := s.Start(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	s.Stop()
	return false, nil
}

// haltLocked отменяет таймер и открытие камеры, сбрасывает память статуса
// и инвалидирует незавершённые циклы.
func (s *CaptureScheduler) haltLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelOpen != nil {
		s.cancelOpen()
		s.cancelOpen = nil
	}
	s.gen++
	s.waiting = false
	s.resetSilentLocked()
}

func (s *CaptureScheduler) resetSilentLocked() {
	s.lastLabel = ""
	s.lastAnnounced = time.Time{}
}

// scheduleLocked ставит следующий тик через Interval после текущего момента
func (s *CaptureScheduler) scheduleLocked(gen uint64) {
	s.timer = time.AfterFunc(s.cfg.Interval, func() { s.tick(gen) })
}

// tick запускает один цикл, если предыдущий завершён.
// Занятый тик пропускается: очередь не копится, перепланирует завершение цикла.
func (s *CaptureScheduler) tick(gen uint64) {
	s.mu.Lock()
	if s.state != entity.CaptureActive || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	if !s.sessions.Ready() {
		// модель перезагружается: кадры не снимаем, ждём публикации новой сессии
		announce := !s.waiting
		s.waiting = true
		s.scheduleLocked(gen)
		s.mu.Unlock()
		if announce {
			s.bus.PublishStatus(entity.StatusModelWaiting)
		}
		return
	}
	resumed := s.waiting
	s.waiting = false

	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.mu.Unlock()
		s.logger.Debug("capture tick skipped, previous cycle still running", "gen", gen)
		return
	}
	s.mu.Unlock()

	if resumed {
		s.bus.PublishStatus(entity.StatusCameraActive)
	}
	s.runCycle(gen)
}

// runCycle: кадр, ресайз и тихая классификация, затем публикация.
func (s *CaptureScheduler) runCycle(gen uint64) {
	defer func() {
		s.inFlight.Store(false)
		s.cycles.Add(1)

		s.mu.Lock()
		if s.state == entity.CaptureActive && s.timer == nil {
			s.scheduleLocked(s.gen)
		}
		s.mu.Unlock()
	}()

	ctx := context.Background()
	result, err := s.captureAndClassify(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != entity.CaptureActive || s.gen != gen {
		s.dropped.Add(1)
		s.logger.Debug("capture result dropped, loop no longer active", "gen", gen)
		return
	}
	if errors.Is(err, entity.ErrSessionNotReady) {
		// перезагрузка началась посреди цикла
		announce := !s.waiting
		s.waiting = true
		if announce {
			s.bus.PublishStatus(entity.StatusModelWaiting)
		}
		return
	}
	if errors.Is(err, entity.ErrCameraNotActive) {
		// камера ещё не отдаёт кадры
		if s.bus.Status() != entity.StatusCameraWaiting {
			s.bus.PublishStatus(entity.StatusCameraWaiting)
		}
		return
	}
	if err != nil {
		s.logger.Warn("camera classification failed", "error", err)
		s.bus.PublishStatus(entity.StatusCameraError)
		return
	}

	s.bus.PublishResult(result)
	s.announceLocked(result)
}

func (s *CaptureScheduler) captureAndClassify(ctx context.Context) (entity.ClassificationResult, error) {
	frame, err := s.camera.Capture(ctx)
	if err != nil {
		return entity.ClassificationResult{}, fmt.Errorf("capture frame: %w", err)
	}
	return s.classifier.ClassifyFrame(ctx, frame)
}

// announceLocked обновляет тихий статус, только если сменилась лучшая метка
// или с прошлого обновления прошло StatusInterval.
func (s *CaptureScheduler) announceLocked(result entity.ClassificationResult) {
	best, ok := result.Top()
	if !ok {
		return
	}
	now := s.now()
	if best.Label == s.lastLabel && now.Sub(s.lastAnnounced) <= s.cfg.StatusInterval {
		return
	}
	s.lastLabel = best.Label
	s.lastAnnounced = now
	s.bus.PublishStatus(entity.CameraGuessStatus(best))
}
