package storage

import (
	"context"
	"sort"
	"sync"

	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		copied := *user
		return &copied, nil
	}

	user := entity.NewUser(userID, chatID)
	r.users[userID] = user

	copied := *user
	return &copied, nil
}

// Save сохраняет состояние пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	copied := *user

	r.mu.Lock()
	r.users[user.ID] = &copied
	r.mu.Unlock()

	return nil
}

// UpdateState обновляет состояние пользователя
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SetState(state)
	}

	return nil
}

// ListByState возвращает копии пользователей в состоянии state, упорядоченные по ID
func (r *MemoryUserRepository) ListByState(ctx context.Context, state entity.UserState) ([]*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.User
	for _, user := range r.users {
		if user.State == state {
			copied := *user
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
