package port

import "context"

// Camera поставляет кадры для цикла захвата
type Camera interface {
	// Open включает камеру и блокируется до её готовности
	Open(ctx context.Context) error

	// Capture снимает один кадр и возвращает его в JPEG
	Capture(ctx context.Context) ([]byte, error)

	// Close выключает камеру
	Close() error
}

// PermissionChecker сообщает, выданы ли разрешения устройства
type PermissionChecker interface {
	CameraGranted(ctx context.Context) bool
}
