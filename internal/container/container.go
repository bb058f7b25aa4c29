package container

import (
	app "vision-classifier/internal/application"
	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/infrastructure/storage"
)

// Deps собирает адаптеры инфраструктуры и параметры конвейера
type Deps struct {
	UserRepo    port.UserRepository
	Loader      port.ModelLoader
	Resizer     port.ImageResizer
	Camera      port.Camera
	Permissions port.PermissionChecker

	Labels        entity.Labels
	Normalization entity.NormalizationParams
	TopK          int
	Capture       app.CaptureConfig
}

type Container struct {
	Bus        *storage.MemoryResultBus
	Sessions   *app.SessionManager
	Classifier *app.ClassifierService
	Capture    *app.CaptureScheduler

	UserService  *app.UserService
	PhotoService *app.PhotoService
}

func New(deps Deps) *Container {
	bus := storage.NewMemoryResultBus()
	sessions := app.NewSessionManager(deps.Loader, bus)
	classifier := app.NewClassifierService(sessions, deps.Resizer, bus, deps.Labels, deps.Normalization, deps.TopK)
	capture := app.NewCaptureScheduler(deps.Capture, deps.Camera, deps.Permissions, classifier, sessions, bus)

	userService := app.NewUserService(deps.UserRepo)
	photoService := app.NewPhotoService(userService, classifier)

	return &Container{
		Bus:          bus,
		Sessions:     sessions,
		Classifier:   classifier,
		Capture:      capture,
		UserService:  userService,
		PhotoService: photoService,
	}
}

// Close останавливает камеру, закрывает сессию модели и шину
func (c *Container) Close() error {
	c.Capture.Stop()
	err := c.Sessions.Close()
	c.Bus.Close()
	return err
}
