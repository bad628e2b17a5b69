package users

// Repo abstracts the identity store so a persistent backing store can be
// substituted without touching token logic.
type Repo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
