package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/blog-cms/internal/model"
)

// MemoryUserRepo is an in-process UserStore for development and tests.
// Both uniqueness checks and the write happen under one lock.
type MemoryUserRepo struct {
	mu         sync.RWMutex
	byID       map[string]model.User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:       make(map[string]model.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryUserRepo) Insert(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	uname := strings.ToLower(u.Username)
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrConflict
	}
	if _, ok := r.byUsername[uname]; ok {
		return ErrConflict
	}
	u.ID = uuid.NewString()
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	r.byUsername[uname] = u.ID
	return nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// Len reports the number of stored users.
func (r *MemoryUserRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
