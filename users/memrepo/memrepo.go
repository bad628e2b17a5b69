// Package memrepo provides the in-memory identity store. Users live only for
// the lifetime of the process; a persistent store can be substituted behind
// users.Repo without touching token logic.
package memrepo

import (
	"sort"
	"sync"

	apperrors "github.com/authflow/go-session-auth/internal/errors"
	"github.com/authflow/go-session-auth/users"
)

var _ users.Repo = (*Repo)(nil)

type Repo struct {
	users map[string]*users.User // keyed by email, case-sensitive as submitted
	lock  sync.RWMutex
}

func New() *Repo {
	return &Repo{
		users: make(map[string]*users.User),
	}
}

func (ur *Repo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.users[user.Email] = user
	return nil
}

func (ur *Repo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[email]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(ur.users, email)
	return nil
}

func (ur *Repo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[email]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (ur *Repo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	emails := make([]string, 0, len(ur.users))
	for email := range ur.users {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	if offset >= len(emails) {
		return nil, nil
	}
	end := len(emails)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	list := make([]*users.User, 0, end-offset)
	for _, email := range emails[offset:end] {
		list = append(list, ur.users[email])
	}
	return list, nil
}
