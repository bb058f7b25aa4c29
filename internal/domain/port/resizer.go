package port

import "context"

// ImageResizer приводит произвольное изображение к входному размеру модели
type ImageResizer interface {
	// Resize возвращает закодированное изображение InputSize x InputSize
	Resize(ctx context.Context, imageData []byte) ([]byte, error)
}
