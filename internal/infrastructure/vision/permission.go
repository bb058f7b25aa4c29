package vision

import (
	"context"
	"os"

	"vision-classifier/internal/domain/port"
)

// DevicePermissions разрешает камеру, если она включена в конфигурации
// и файл устройства (если задан) открывается на чтение.
type DevicePermissions struct {
	Enabled bool
	Path    string
}

// CameraGranted реализует port.PermissionChecker
func (p DevicePermissions) CameraGranted(ctx context.Context) bool {
	if !p.Enabled {
		return false
	}
	if p.Path == "" {
		return true
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

var _ port.PermissionChecker = DevicePermissions{}
