package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-session-service/internal/domain"
)

// UserDirectory is a static app.UserDirectory for tests and local runs.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

func NewUserDirectory(users ...domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[int64]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *UserDirectory) Put(user domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *UserDirectory) LookupUser(_ context.Context, userID int64) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (d *UserDirectory) Usernames(_ context.Context, userIDs []int64) (map[int64]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make(map[int64]string, len(userIDs))
	for _, id := range userIDs {
		if user, ok := d.users[id]; ok {
			names[id] = user.Username
		}
	}
	return names, nil
}

func (d *UserDirectory) ListUsers(_ context.Context) ([]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}
