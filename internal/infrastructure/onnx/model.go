package onnx

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

// Model оборачивает открытую сессию ONNX Runtime.
// Тензоры создаются на каждый запуск, поэтому параллельные Run не делят буферы.
type Model struct {
	session   *ort.DynamicAdvancedSession
	inputs    []entity.TensorInfo
	outputs   []entity.TensorInfo
	inputName string
}

func (m *Model) Inputs() []entity.TensorInfo  { return m.inputs }
func (m *Model) Outputs() []entity.TensorInfo { return m.outputs }

// Run выполняет модель и копирует выходы в память Go.
func (m *Model) Run(ctx context.Context, inputName string, input *entity.Tensor) (entity.OutputMap, error) {
	if inputName != m.inputName {
		return nil, fmt.Errorf("unknown input %q, session expects %q", inputName, m.inputName)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := input.Shape()
	tensor, err := ort.NewTensor(ort.NewShape(shape...), input.Data())
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs := make([]ort.ArbitraryTensor, len(m.outputs))
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()
	for i, info := range m.outputs {
		out, err := ort.NewEmptyTensor[float32](concreteShape(info.Shape))
		if err != nil {
			return nil, fmt.Errorf("output tensor %q: %w", info.Name, err)
		}
		outputs[i] = out
	}

	if err := m.session.Run([]ort.ArbitraryTensor{tensor}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	result := make(entity.OutputMap, len(outputs))
	for i, o := range outputs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q: unexpected type %T", m.outputs[i].Name, o)
		}
		data := t.GetData()
		copied := make([]float32, len(data))
		copy(copied, data)
		result[m.outputs[i].Name] = entity.OutputTensor{
			Shape: append([]int64(nil), t.GetShape()...),
			Data:  copied,
		}
	}
	return result, nil
}

// concreteShape заменяет динамические измерения на 1: батч всегда из одного изображения
func concreteShape(dims []int64) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

// Close уничтожает сессию
func (m *Model) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

var _ port.Model = (*Model)(nil)
