package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/log"
)

// DefaultTopK задаёт, сколько классов возвращать по умолчанию.
const DefaultTopK = 3

// ClassifyOptions задаёт режим классификации.
type ClassifyOptions struct {
	// Silent отмечает фоновый вызов цикла камеры: без флага занятости,
	// без публикации статуса и результата.
	Silent bool
}

// ClassifierService собирает конвейер: предобработка, запуск модели, постобработка.
type ClassifierService struct {
	sessions *SessionManager
	resizer  port.ImageResizer
	bus      port.ResultBus
	labels   entity.Labels
	norm     entity.NormalizationParams
	topK     int
	logger   *slog.Logger

	// флаг интерактивной классификации, независим от цикла камеры
	busy atomic.Bool
}

// NewClassifierService создаёт сервис классификации
func NewClassifierService(
	sessions *SessionManager,
	resizer port.ImageResizer,
	bus port.ResultBus,
	labels entity.Labels,
	norm entity.NormalizationParams,
	topK int,
) *ClassifierService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ClassifierService{
		sessions: sessions,
		resizer:  resizer,
		bus:      bus,
		labels:   labels,
		norm:     norm,
		topK:     topK,
		logger:   log.With("component", "classifier"),
	}
}

// Busy сообщает, идёт ли интерактивная классификация
func (s *ClassifierService) Busy() bool {
	return s.busy.Load()
}

// Labels возвращает подписи классов
func (s *ClassifierService) Labels() entity.Labels {
	return s.labels
}

// LoadModel загружает модель и проверяет соответствие подписей числу классов
func (s *ClassifierService) LoadModel(ctx context.Context, src entity.ModelSource) error {
	session, err := s.sessions.Load(ctx, src)
	if err != nil {
		return err
	}
	s.checkLabels(session)
	return nil
}

// ReloadModel перезагружает модель из того же источника
func (s *ClassifierService) ReloadModel(ctx context.Context) error {
	session, err := s.sessions.Reload(ctx)
	if err != nil {
		return err
	}
	s.checkLabels(session)
	return nil
}

// checkLabels только предупреждает: недостающие подписи заменяются на cls_<i>.
func (s *ClassifierService) checkLabels(session *ModelSession) {
	if session.NumClasses > 0 && session.NumClasses != len(s.labels) {
		s.logger.Warn("labels do not match model classes",
			"labels", len(s.labels), "classes", session.NumClasses, "session_id", session.ID)
	}
}

// ClassifyImage классифицирует произвольное изображение интерактивно:
// ресайз до входного размера, затем конвейер. Параллельный второй вызов получает ErrBusy.
func (s *ClassifierService) ClassifyImage(ctx context.Context, imageData []byte) (entity.ClassificationResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return entity.ClassificationResult{}, entity.ErrBusy
	}
	defer s.busy.Store(false)

	if s.sessions.Current() == nil {
		s.bus.PublishStatus(entity.StatusLoadingModel)
		return entity.ClassificationResult{}, entity.ErrSessionNotReady
	}

	s.bus.PublishStatus(entity.StatusClassifying)

	result, err := s.classifyResized(ctx, imageData, ClassifyOptions{})
	if err != nil {
		s.logger.Error("classification failed", "error", err)
		s.bus.PublishStatus(entity.ErrorStatus(entity.Reason(err)))
		return entity.ClassificationResult{}, err
	}

	s.bus.PublishResult(result)
	s.bus.PublishStatus(entity.StatusReady)
	return result, nil
}

func (s *ClassifierService) classifyResized(ctx context.Context, imageData []byte, opts ClassifyOptions) (entity.ClassificationResult, error) {
	resized, err := s.resizer.Resize(ctx, imageData)
	if err != nil {
		if !errors.Is(err, entity.ErrDecode) {
			err = entity.NewError(entity.ErrDecode, "resize", err)
		}
		return entity.ClassificationResult{}, err
	}
	return s.Classify(ctx, resized, opts)
}

// Classify прогоняет изображение InputSize x InputSize через модель.
// Каждый вызов получает собственный тензор.
func (s *ClassifierService) Classify(ctx context.Context, imageData []byte, opts ClassifyOptions) (entity.ClassificationResult, error) {
	if s.sessions.Current() == nil {
		return entity.ClassificationResult{}, entity.ErrSessionNotReady
	}
	started := time.Now()

	tensor, err := Preprocess(imageData, s.norm)
	if err != nil {
		return entity.ClassificationResult{}, err
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		means := ChannelMeans(tensor)
		s.logger.Debug("tensor channel means", "r", means[0], "g", means[1], "b", means[2])
	}

	acquire := s.sessions.Acquire
	if opts.Silent {
		acquire = s.sessions.AcquireReady
	}
	session, release, err := acquire()
	if err != nil {
		return entity.ClassificationResult{}, err
	}
	defer release()

	outputs, err := s.sessions.Run(ctx, session, tensor)
	if err != nil {
		return entity.ClassificationResult{}, err
	}

	result, err := Postprocess(outputs, session.OutputName, s.labels, s.topK)
	if err != nil {
		return entity.ClassificationResult{}, err
	}
	result.SessionID = session.ID
	result.Duration = time.Since(started)

	s.logger.Debug("classified",
		"silent", opts.Silent,
		"session_id", session.ID,
		"top", result.String(),
		"duration", result.Duration,
	)
	return result, nil
}

// ClassifyFrame тихо классифицирует кадр камеры: ресайз и конвейер,
// без флага занятости и без публикации.
func (s *ClassifierService) ClassifyFrame(ctx context.Context, frame []byte) (entity.ClassificationResult, error) {
	return s.classifyResized(ctx, frame, ClassifyOptions{Silent: true})
}
