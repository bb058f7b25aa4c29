package app

import (
	"context"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) BeginClassify(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// Watch подписывает пользователя на статусы камеры
func (s *UserService) Watch(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateWatching)
}

// Watchers возвращает пользователей, которым рассылаются статусы камеры
func (s *UserService) Watchers(ctx context.Context) ([]*entity.User, error) {
	return s.repo.ListByState(ctx, entity.StateWatching)
}

// UnwatchAll возвращает всех наблюдателей в главное меню
func (s *UserService) UnwatchAll(ctx context.Context) error {
	watchers, err := s.Watchers(ctx)
	if err != nil {
		return err
	}
	for _, u := range watchers {
		if err := s.repo.UpdateState(ctx, u.ID, entity.StateMainMenu); err != nil {
			return err
		}
	}
	return nil
}
