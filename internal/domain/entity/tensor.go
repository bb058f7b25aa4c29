package entity

import "fmt"

// InputSize задаёт сторону квадратного входа модели в пикселях.
const InputSize = 224

// Channels задаёт число цветовых каналов во входном тензоре.
const Channels = 3

// ImageBuffer хранит декодированное RGB-изображение, 8 бит на канал.
type ImageBuffer struct {
	Width  int
	Height int
	Pix    []uint8 // R,G,B подряд для каждого пикселя, построчно
}

// At возвращает компоненты пикселя (x, y).
func (b *ImageBuffer) At(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Tensor хранит входной тензор модели в раскладке NCHW.
type Tensor struct {
	shape [4]int64
	data  []float32
}

// NewTensor создаёт тензор формы [1,3,h,w] и принимает владение data.
func NewTensor(height, width int, data []float32) (*Tensor, error) {
	want := Channels * height * width
	if len(data) != want {
		return nil, fmt.Errorf("tensor data length %d, want %d", len(data), want)
	}
	return &Tensor{
		shape: [4]int64{1, Channels, int64(height), int64(width)},
		data:  data,
	}, nil
}

// Shape возвращает форму тензора.
func (t *Tensor) Shape() []int64 {
	s := t.shape
	return s[:]
}

// Data возвращает копию значений, чтобы тензор оставался неизменяемым.
func (t *Tensor) Data() []float32 {
	out := make([]float32, len(t.data))
	copy(out, t.data)
	return out
}

// Plane возвращает копию плоскости канала c.
func (t *Tensor) Plane(c int) []float32 {
	size := int(t.shape[2] * t.shape[3])
	out := make([]float32, size)
	copy(out, t.data[c*size:(c+1)*size])
	return out
}
