package app

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"vision-classifier/internal/domain/entity"
)

var errEmptyImage = errors.New("empty image")

// DecodeImage декодирует JPEG/PNG 224x224 в RGB-буфер, альфа-канал отбрасывается.
// Другой размер даёт ErrShape без декодирования растра.
func DecodeImage(imageData []byte) (*entity.ImageBuffer, error) {
	if len(imageData) == 0 {
		return nil, entity.NewError(entity.ErrDecode, "preprocess", errEmptyImage)
	}

	// размеры из заголовка, до выделения памяти под растр
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, entity.NewError(entity.ErrDecode, "preprocess", err)
	}
	if err := checkInputSize(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, entity.NewError(entity.ErrDecode, "preprocess", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := &entity.ImageBuffer{
		Width:  w,
		Height: h,
		Pix:    make([]uint8, w*h*entity.Channels),
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf.Pix[i] = c.R
			buf.Pix[i+1] = c.G
			buf.Pix[i+2] = c.B
			i += entity.Channels
		}
	}

	return buf, nil
}

// TensorFromBuffer нормализует буфер InputSize x InputSize в тензор CHW.
func TensorFromBuffer(buf *entity.ImageBuffer, p entity.NormalizationParams) (*entity.Tensor, error) {
	if err := checkInputSize(buf.Width, buf.Height); err != nil {
		return nil, err
	}

	size := buf.Width * buf.Height
	data := make([]float32, entity.Channels*size)

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			pr, pg, pb := buf.At(x, y)
			r := float32(pr) / 255
			g := float32(pg) / 255
			b := float32(pb) / 255
			if p.SwapRB {
				r, b = b, r
			}

			i := y*buf.Width + x
			data[i] = (r - p.Mean[0]) / p.Std[0]
			data[size+i] = (g - p.Mean[1]) / p.Std[1]
			data[2*size+i] = (b - p.Mean[2]) / p.Std[2]
		}
	}

	return entity.NewTensor(buf.Height, buf.Width, data)
}

func checkInputSize(w, h int) error {
	if w != entity.InputSize || h != entity.InputSize {
		return entity.NewError(entity.ErrShape, "preprocess",
			fmt.Errorf("expected %dx%d, got %dx%d", entity.InputSize, entity.InputSize, w, h))
	}
	return nil
}

// Preprocess превращает байты изображения 224x224 в нормализованный тензор.
// Размер не подгоняется: ресайз делается раньше, при получении изображения.
func Preprocess(imageData []byte, p entity.NormalizationParams) (*entity.Tensor, error) {
	buf, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}
	return TensorFromBuffer(buf, p)
}

// ChannelMeans считает среднее по каждой плоскости тензора.
func ChannelMeans(t *entity.Tensor) [3]float32 {
	var means [3]float32
	for c := 0; c < entity.Channels; c++ {
		plane := t.Plane(c)
		if len(plane) == 0 {
			continue
		}
		var sum float64
		for _, v := range plane {
			sum += float64(v)
		}
		means[c] = float32(sum / float64(len(plane)))
	}
	return means
}
