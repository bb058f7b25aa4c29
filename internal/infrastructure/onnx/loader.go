package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/log"
)

// Config задаёт параметры окружения ONNX Runtime
type Config struct {
	// LibraryPath указывает путь к libonnxruntime, пустой означает системный поиск
	LibraryPath string
	// IntraOpThreads ограничивает потоки одного запуска, 0 оставляет значение по умолчанию
	IntraOpThreads int
}

// Loader создаёт сессии ONNX Runtime. Окружение инициализируется один раз на процесс.
type Loader struct {
	cfg    Config
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

// NewLoader создаёт загрузчик моделей
func NewLoader(cfg Config) *Loader {
	return &Loader{
		cfg:    cfg,
		logger: log.With("component", "onnx"),
	}
}

func (l *Loader) initEnvironment() error {
	l.initOnce.Do(func() {
		if l.cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(l.cfg.LibraryPath)
		}
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				l.initErr = fmt.Errorf("init onnxruntime: %w", err)
				return
			}
		}
		l.logger.Info("onnxruntime initialized", "library", l.cfg.LibraryPath)
	})
	return l.initErr
}

// Load копирует модель в каталог подготовки, читает описание входов и выходов
// и открывает сессию. Выходы, отличные от float32, пропускаются.
func (l *Loader) Load(ctx context.Context, src entity.ModelSource) (port.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := Stage(src)
	if err != nil {
		return nil, entity.NewError(entity.ErrModelLoad, "stage", err)
	}
	if err := l.initEnvironment(); err != nil {
		return nil, entity.NewError(entity.ErrModelLoad, "init", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, entity.NewError(entity.ErrModelLoad, "io info", err)
	}
	inInfo := tensorInfos(inputs, false)
	outInfo := tensorInfos(outputs, true)
	if len(inInfo) == 0 {
		return nil, entity.NewError(entity.ErrModelLoad, "io info", fmt.Errorf("model %s declares no inputs", path))
	}
	if len(outInfo) == 0 {
		return nil, entity.NewError(entity.ErrModelLoad, "io info", fmt.Errorf("model %s declares no float outputs", path))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, entity.NewError(entity.ErrModelLoad, "session options", err)
	}
	defer opts.Destroy()
	if l.cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(l.cfg.IntraOpThreads); err != nil {
			return nil, entity.NewError(entity.ErrModelLoad, "session options", err)
		}
	}

	outNames := names(outInfo)
	session, err := ort.NewDynamicAdvancedSession(path, []string{inInfo[0].Name}, outNames, opts)
	if err != nil {
		return nil, entity.NewError(entity.ErrModelLoad, "session", err)
	}

	l.logger.Info("model loaded",
		"path", path,
		"input", inInfo[0].Name,
		"input_shape", inInfo[0].Shape,
		"outputs", outNames,
	)

	return &Model{
		session:   session,
		inputs:    inInfo,
		outputs:   outInfo,
		inputName: inInfo[0].Name,
	}, nil
}

// tensorInfos переводит описание ONNX Runtime в доменное.
// floatOnly оставляет только выходы float32.
func tensorInfos(infos []ort.InputOutputInfo, floatOnly bool) []entity.TensorInfo {
	out := make([]entity.TensorInfo, 0, len(infos))
	for _, info := range infos {
		if floatOnly && info.DataType != ort.TensorElementDataTypeFloat {
			continue
		}
		shape := make([]int64, len(info.Dimensions))
		copy(shape, info.Dimensions)
		out = append(out, entity.TensorInfo{Name: info.Name, Shape: shape})
	}
	return out
}

func names(infos []entity.TensorInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Name)
	}
	return out
}

var _ port.ModelLoader = (*Loader)(nil)
