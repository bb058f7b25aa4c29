package app

import (
	"context"

	"vision-classifier/internal/domain/entity"
)

// PhotoService ведёт пользователя через классификацию присланного фото.
type PhotoService struct {
	users      *UserService
	classifier *ClassifierService
}

// NewPhotoService создаёт сервис классификации фото из чата.
func NewPhotoService(users *UserService, classifier *ClassifierService) *PhotoService {
	return &PhotoService{
		users:      users,
		classifier: classifier,
	}
}

// AcceptPhoto классифицирует фото. На время классификации пользователь в состоянии
// processing, затем возвращается в меню или к наблюдению за камерой.
func (s *PhotoService) AcceptPhoto(ctx context.Context, userID, chatID int64, photo []byte) (entity.ClassificationResult, error) {
	user, err := s.users.Get(ctx, userID, chatID)
	if err != nil {
		return entity.ClassificationResult{}, err
	}
	if user.State == entity.StateProcessing {
		return entity.ClassificationResult{}, entity.ErrBusy
	}
	next := entity.StateMainMenu
	if user.Watching() {
		next = entity.StateWatching
	}

	if _, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		return entity.ClassificationResult{}, err
	}

	result, classifyErr := s.classifier.ClassifyImage(ctx, photo)

	if _, err := s.users.SetState(ctx, userID, chatID, next); err != nil {
		return entity.ClassificationResult{}, err
	}
	return result, classifyErr
}
