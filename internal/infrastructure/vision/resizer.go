package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

const (
	// DefaultJPEGQuality задаёт качество JPEG после ресайза.
	DefaultJPEGQuality = 95

	// DefaultMaxPixels ограничивает площадь входного изображения (около 40 Мп).
	DefaultMaxPixels = 40_000_000
)

// Resizer приводит изображение к InputSize x InputSize фильтром Lanczos3.
type Resizer struct {
	Size     uint
	Quality  int
	Lossless bool // PNG вместо JPEG

	// MaxPixels ограничивает ширину*высоту исходника, 0 отключает проверку
	MaxPixels int
}

// NewResizer создаёт ресайзер под вход модели.
func NewResizer(lossless bool) *Resizer {
	return &Resizer{
		Size:      entity.InputSize,
		Quality:   DefaultJPEGQuality,
		Lossless:  lossless,
		MaxPixels: DefaultMaxPixels,
	}
}

// Resize декодирует изображение, масштабирует без сохранения пропорций и кодирует заново.
func (r *Resizer) Resize(ctx context.Context, imageData []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(imageData) == 0 {
		return nil, entity.NewError(entity.ErrDecode, "resize", errors.New("empty image"))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, entity.NewError(entity.ErrDecode, "resize", err)
	}
	if r.MaxPixels > 0 && cfg.Width*cfg.Height > r.MaxPixels {
		return nil, entity.NewError(entity.ErrDecode, "resize",
			fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, r.MaxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, entity.NewError(entity.ErrDecode, "resize", err)
	}

	resized := resize.Resize(r.Size, r.Size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if r.Lossless {
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: r.Quality})
	}
	if err != nil {
		return nil, entity.NewError(entity.ErrDecode, "resize", err)
	}

	return buf.Bytes(), nil
}

var _ port.ImageResizer = (*Resizer)(nil)
