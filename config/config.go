package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vision-classifier/internal/domain/entity"
)

const (
	DefaultHTTPAddr        = ":8080"
	DefaultModelPath       = "models/mobilenetv2_finetuned.onnx"
	DefaultLabelsPath      = "models/labels.json"
	DefaultTopK            = 3
	DefaultCameraQuality   = 40
	DefaultCaptureInterval = 800 * time.Millisecond
	DefaultStatusInterval  = 900 * time.Millisecond
)

type Config struct {
	TelegramToken string // пустой отключает бота
	HTTPAddr      string // пустой отключает HTTP API
	LogLevel      string

	Model         ModelConfig
	LabelsPath    string
	Normalization entity.NormalizationParams
	PNGLossless   bool
	TopK          int

	Camera CameraConfig
}

// ModelConfig описывает, где лежит модель и как запускать ONNX Runtime
type ModelConfig struct {
	Path           string
	DataPath       string // внешние веса, копируются рядом с моделью
	StagingDir     string
	LibraryPath    string
	IntraOpThreads int
}

// CameraConfig задаёт устройство и темп цикла камеры
type CameraConfig struct {
	Enabled        bool
	Device         int
	DevicePath     string
	Quality        int
	Interval       time.Duration
	StatusInterval time.Duration
}

// Source возвращает источник модели для загрузчика
func (m ModelConfig) Source() entity.ModelSource {
	return entity.ModelSource{
		Path:             m.Path,
		ExternalDataPath: m.DataPath,
		StagingDir:       m.StagingDir,
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      stringOr("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:      stringOr("LOG_LEVEL", "info"),
		LabelsPath:    stringOr("LABELS_PATH", DefaultLabelsPath),
		PNGLossless:   p.bool("USE_PNG_LOSSLESS", false),
		TopK:          p.int("TOP_K", DefaultTopK),
	}

	cfg.Model = ModelConfig{
		Path:           stringOr("MODEL_PATH", DefaultModelPath),
		StagingDir:     stringOr("MODEL_STAGING_DIR", filepath.Join(os.TempDir(), "ort-model")),
		LibraryPath:    os.Getenv("ORT_LIBRARY_PATH"),
		IntraOpThreads: p.int("ORT_INTRA_OP_THREADS", 0),
	}
	cfg.Model.DataPath = os.Getenv("MODEL_DATA_PATH")
	if cfg.Model.DataPath == "" {
		if _, err := os.Stat(cfg.Model.Path + ".data"); err == nil {
			cfg.Model.DataPath = cfg.Model.Path + ".data"
		}
	}

	norm := entity.ImageNetNormalization()
	norm.Mean = p.triple("NORM_MEAN", norm.Mean)
	norm.Std = p.triple("NORM_STD", norm.Std)
	norm.SwapRB = p.bool("USE_BGR", false)
	cfg.Normalization = norm

	cfg.Camera = CameraConfig{
		Enabled:        p.bool("CAMERA_ENABLED", false),
		Device:         p.int("CAMERA_DEVICE", 0),
		DevicePath:     os.Getenv("CAMERA_DEVICE_PATH"),
		Quality:        p.int("CAMERA_QUALITY", DefaultCameraQuality),
		Interval:       p.duration("CAPTURE_INTERVAL", DefaultCaptureInterval),
		StatusInterval: p.duration("STATUS_INTERVAL", DefaultStatusInterval),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет диапазоны значений
func (c *Config) Validate() error {
	var errs []error
	if c.Model.Path == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.Model.IntraOpThreads < 0 {
		errs = append(errs, fmt.Errorf("ORT_INTRA_OP_THREADS must not be negative, got %d", c.Model.IntraOpThreads))
	}
	if err := c.Normalization.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("NORM_STD: %w", err))
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		errs = append(errs, fmt.Errorf("CAMERA_QUALITY must be in 1..100, got %d", c.Camera.Quality))
	}
	if c.Camera.Interval <= 0 {
		errs = append(errs, fmt.Errorf("CAPTURE_INTERVAL must be positive, got %s", c.Camera.Interval))
	}
	if c.Camera.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("STATUS_INTERVAL must be positive, got %s", c.Camera.StatusInterval))
	}
	return errors.Join(errs...)
}

func stringOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// parser копит ошибки разбора, чтобы сообщить обо всех сразу
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// triple разбирает "0.485,0.456,0.406"
func (p *parser) triple(key string, def [3]float32) [3]float32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		p.errs = append(p.errs, fmt.Errorf("%s: expected 3 comma-separated values, got %d", key, len(parts)))
		return def
	}
	var out [3]float32
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		out[i] = float32(f)
	}
	return out
}
