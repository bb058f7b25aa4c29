package port

import (
	"context"

	"vision-classifier/internal/domain/entity"
)

// Model представляет загруженную модель движка инференса
type Model interface {
	// Inputs возвращает объявленные входы в порядке модели
	Inputs() []entity.TensorInfo

	// Outputs возвращает объявленные выходы в порядке модели
	Outputs() []entity.TensorInfo

	// Run выполняет модель на одном именованном входе
	Run(ctx context.Context, inputName string, input *entity.Tensor) (entity.OutputMap, error)

	// Close освобождает ресурсы движка
	Close() error
}

// ModelLoader создаёт модель из источника
type ModelLoader interface {
	Load(ctx context.Context, src entity.ModelSource) (Model, error)
}
