package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vision-classifier/internal/container"
	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/log"
)

// MaxImageBytes ограничивает размер загружаемого изображения
const MaxImageBytes = 20 << 20

// Server отдаёт HTTP API конвейера классификации
type Server struct {
	c      *container.Container
	engine *gin.Engine
	logger *slog.Logger
}

type sessionInfo struct {
	ID            string    `json:"id"`
	Version       uint64    `json:"version"`
	Input         string    `json:"input"`
	Output        string    `json:"output"`
	Probabilities bool      `json:"probabilities"`
	Classes       int       `json:"classes"`
	LoadedAt      time.Time `json:"loaded_at"`
}

type cameraInfo struct {
	State   entity.CaptureState `json:"state"`
	Cycles  uint64              `json:"cycles"`
	Skipped uint64              `json:"skipped"`
	Dropped uint64              `json:"dropped"`
}

type statusResponse struct {
	Status  entity.Status `json:"status"`
	Ready   bool          `json:"ready"`
	Busy    bool          `json:"busy"`
	Session *sessionInfo  `json:"session"`
	Camera  cameraInfo    `json:"camera"`
}

type classifyResponse struct {
	RequestID string `json:"request_id"`
	entity.ClassificationResult
}

// NewServer создаёт сервер и регистрирует маршруты
func NewServer(c *container.Container) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		c:      c,
		engine: gin.New(),
		logger: log.With("component", "http"),
	}
	s.engine.Use(gin.Recovery(), s.requestLog())

	s.engine.GET("/health", s.health)
	s.engine.GET("/status", s.status)
	s.engine.GET("/result", s.result)
	s.engine.POST("/classify", s.classify)
	s.engine.POST("/reload", s.reload)

	camera := s.engine.Group("/camera")
	camera.GET("", s.cameraState)
	camera.POST("/start", s.cameraStart)
	camera.POST("/stop", s.cameraStop)
	camera.POST("/toggle", s.cameraToggle)

	return s
}

// Handler возвращает http.Handler для тестов и встраивания
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run слушает addr до отмены ctx
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": s.c.Sessions.Ready()})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:  s.c.Bus.Status(),
		Ready:   s.c.Sessions.Ready(),
		Busy:    s.c.Classifier.Busy(),
		Session: s.session(),
		Camera:  s.camera(),
	})
}

func (s *Server) result(c *gin.Context) {
	result := s.c.Bus.Result()
	if result.Empty() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no result yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// classify принимает изображение телом запроса или полем формы image
func (s *Server) classify(c *gin.Context) {
	imageData, err := readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := uuid.NewString()
	c.Header("X-Request-ID", requestID)

	result, err := s.c.Classifier.ClassifyImage(c.Request.Context(), imageData)
	if err != nil {
		s.logger.Warn("classify request failed", "request_id", requestID, "error", err)
		c.JSON(errorStatus(err), gin.H{"error": entity.Reason(err), "request_id": requestID})
		return
	}

	c.JSON(http.StatusOK, classifyResponse{RequestID: requestID, ClassificationResult: result})
}

func (s *Server) reload(c *gin.Context) {
	if err := s.c.Classifier.ReloadModel(c.Request.Context()); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": entity.Reason(err)})
		return
	}
	c.JSON(http.StatusOK, s.session())
}

func (s *Server) cameraState(c *gin.Context) {
	c.JSON(http.StatusOK, s.camera())
}

func (s *Server) cameraStart(c *gin.Context) {
	if err := s.c.Capture.Start(context.WithoutCancel(c.Request.Context())); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": entity.Reason(err)})
		return
	}
	c.JSON(http.StatusAccepted, s.camera())
}

func (s *Server) cameraStop(c *gin.Context) {
	s.c.Capture.Stop()
	c.JSON(http.StatusOK, s.camera())
}

func (s *Server) cameraToggle(c *gin.Context) {
	if _, err := s.c.Capture.Toggle(context.WithoutCancel(c.Request.Context())); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": entity.Reason(err)})
		return
	}
	c.JSON(http.StatusOK, s.camera())
}

func (s *Server) session() *sessionInfo {
	cur := s.c.Sessions.Current()
	if cur == nil {
		return nil
	}
	return &sessionInfo{
		ID:            cur.ID,
		Version:       cur.Version,
		Input:         cur.InputName,
		Output:        cur.OutputName,
		Probabilities: cur.Probabilities,
		Classes:       cur.NumClasses,
		LoadedAt:      cur.LoadedAt,
	}
}

func (s *Server) camera() cameraInfo {
	stats := s.c.Capture.Stats()
	return cameraInfo{
		State:   s.c.Capture.State(),
		Cycles:  stats.Cycles,
		Skipped: stats.Skipped,
		Dropped: stats.Dropped,
	}
}

func readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageBytes)

	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, entity.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, entity.ErrSessionNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrDecode), errors.Is(err, entity.ErrShape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrModelLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
