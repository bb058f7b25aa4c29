//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

// GoCVCamera снимает кадры с локального устройства через OpenCV.
type GoCVCamera struct {
	Device  int
	Quality int

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewGoCVCamera создаёт камеру для устройства device с качеством JPEG quality.
func NewGoCVCamera(device, quality int) *GoCVCamera {
	return &GoCVCamera{Device: device, Quality: quality}
}

// Open открывает устройство. Повторный вызов ничего не делает.
func (c *GoCVCamera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vc, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.Device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("camera %d is not available", c.Device)
	}
	// в буфере только свежий кадр
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	if err := ctx.Err(); err != nil {
		_ = vc.Close()
		return err
	}
	c.capture = vc
	return nil
}

// Capture снимает кадр и кодирует его в JPEG.
func (c *GoCVCamera) Capture(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, entity.ErrCameraNotActive
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		return nil, errors.New("failed to read frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, c.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, buf.Len())
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Close освобождает устройство.
func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

var _ port.Camera = (*GoCVCamera)(nil)
