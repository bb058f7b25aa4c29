package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
	"vision-classifier/internal/infrastructure/storage"
)

// fakeModel отдаёт фиксированные логиты; gate, если задан, задерживает Run.
type fakeModel struct {
	name    string
	inputs  []entity.TensorInfo
	outputs []entity.TensorInfo
	scores  map[string][]float32
	gate    chan struct{}
	started chan struct{}

	runs      atomic.Int32
	closed    atomic.Bool
	lastInput atomic.Value
}

func newFakeModel(name string, outputs map[string][]float32, order ...string) *fakeModel {
	m := &fakeModel{name: name, scores: outputs}
	m.inputs = []entity.TensorInfo{{Name: "pixel_values", Shape: []int64{1, 3, 224, 224}}}
	for _, o := range order {
		m.outputs = append(m.outputs, entity.TensorInfo{Name: o, Shape: []int64{1, int64(len(outputs[o]))}})
	}
	return m
}

func (m *fakeModel) Inputs() []entity.TensorInfo  { return m.inputs }
func (m *fakeModel) Outputs() []entity.TensorInfo { return m.outputs }

func (m *fakeModel) Run(ctx context.Context, inputName string, input *entity.Tensor) (entity.OutputMap, error) {
	if m.closed.Load() {
		return nil, errors.New("run on closed model " + m.name)
	}
	m.runs.Add(1)
	m.lastInput.Store(inputName)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	out := entity.OutputMap{}
	for name, data := range m.scores {
		cp := make([]float32, len(data))
		copy(cp, data)
		out[name] = entity.OutputTensor{Shape: []int64{1, int64(len(cp))}, Data: cp}
	}
	return out, nil
}

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

// fakeLoader отдаёт модели по очереди; gate задерживает Load.
type fakeLoader struct {
	mu     sync.Mutex
	models []*fakeModel
	errs   []error
	gate   chan struct{}
	loads  int
}

func (l *fakeLoader) Load(ctx context.Context, src entity.ModelSource) (port.Model, error) {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.loads
	l.loads++
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i >= len(l.models) {
		return nil, errors.New("no more models")
	}
	return l.models[i], nil
}

// recordingBus запоминает историю статусов поверх шины в памяти.
type recordingBus struct {
	*storage.MemoryResultBus

	mu       sync.Mutex
	statuses []entity.Status
}

func newRecordingBus() *recordingBus {
	return &recordingBus{MemoryResultBus: storage.NewMemoryResultBus()}
}

func (b *recordingBus) PublishStatus(status entity.Status) {
	b.mu.Lock()
	b.statuses = append(b.statuses, status)
	b.mu.Unlock()
	b.MemoryResultBus.PublishStatus(status)
}

func (b *recordingBus) History() []entity.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entity.Status, len(b.statuses))
	copy(out, b.statuses)
	return out
}

func (b *recordingBus) Saw(status entity.Status) bool {
	for _, s := range b.History() {
		if s == status {
			return true
		}
	}
	return false
}

// passthroughResizer возвращает изображение без изменений.
type passthroughResizer struct{}

func (passthroughResizer) Resize(ctx context.Context, imageData []byte) ([]byte, error) {
	return imageData, nil
}

// uniformPNG кодирует изображение w x h одного цвета без потерь.
func uniformPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return encodePNG(t, img)
}

// pngHeader собирает PNG только с сигнатурой и IHDR
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	ihdr[9] = 2

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newLoadedManager создаёт менеджер с загруженной моделью m.
func newLoadedManager(t *testing.T, bus *recordingBus, models ...*fakeModel) (*SessionManager, *fakeLoader) {
	t.Helper()
	loader := &fakeLoader{models: models}
	manager := NewSessionManager(loader, bus)
	_, err := manager.Load(context.Background(), entity.ModelSource{Path: "model.onnx"})
	require.NoError(t, err)
	return manager, loader
}
