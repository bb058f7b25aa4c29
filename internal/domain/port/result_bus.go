package port

import "vision-classifier/internal/domain/entity"

// StatusPublisher публикует строку статуса
type StatusPublisher interface {
	PublishStatus(status entity.Status)
}

// ResultBus публикует статус и последний результат, храня только последнее значение
type ResultBus interface {
	StatusPublisher

	// PublishResult заменяет последний результат классификации
	PublishResult(result entity.ClassificationResult)

	// Status возвращает последний статус
	Status() entity.Status

	// Result возвращает последний результат
	Result() entity.ClassificationResult
}
