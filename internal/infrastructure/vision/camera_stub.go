//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

// GoCVCamera заменяет камеру в сборке без OpenCV.
type GoCVCamera struct {
	Device  int
	Quality int
}

// NewGoCVCamera создаёт камеру-заглушку.
func NewGoCVCamera(device, quality int) *GoCVCamera {
	return &GoCVCamera{Device: device, Quality: quality}
}

// Open возвращает ошибку, если сборка без тега gocv.
func (c *GoCVCamera) Open(context.Context) error {
	return errors.New("gocv build tag is not enabled")
}

// Capture возвращает ошибку: камера в этой сборке не открывается.
func (c *GoCVCamera) Capture(context.Context) ([]byte, error) {
	return nil, entity.ErrCameraNotActive
}

// Close ничего не делает.
func (c *GoCVCamera) Close() error {
	return nil
}

var _ port.Camera = (*GoCVCamera)(nil)
