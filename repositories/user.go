//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/samber/lo"
)

type IUserRepository interface {
	Create(identity domain.Identity) error
	Get(id string) (domain.Identity, error)
	GetByEmail(email string) (domain.Identity, error)
	Update(id string, fn func(*domain.Identity) error) (domain.Identity, error)
	Delete(id string) error
	List(filter UserFilter) ([]domain.Identity, int, error)
	Count() (int, error)
}

type UserFilter struct {
	Role  *domain.Role
	Page  int
	Limit int
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// DiskUser is the stored form of an identity, the only place the password hash lives.
type DiskUser struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	AssignedRoom *string    `json:"assigned_room,omitempty"`
	CreatedBy    *string    `json:"created_by,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// emailKey enforces email uniqueness and resolves logins.
func emailKey(email string) []byte {
	return []byte("user-email:" + email)
}

func (u *UserRepository) Create(identity domain.Identity) error {
	return update(u.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(identity.Email)); err == nil {
			return errors.ErrEmailInUse
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, userKey(identity.ID), fromIdentity(identity)); err != nil {
			return err
		}
		return txn.Set(emailKey(identity.Email), []byte(identity.ID))
	})
}

func (u *UserRepository) Get(id string) (domain.Identity, error) {
	var disk DiskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Identity{}, errors.ErrIdentityNotFound
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return toIdentity(disk), nil
}

func (u *UserRepository) GetByEmail(email string) (domain.Identity, error) {
	var disk DiskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(string(id)), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Identity{}, errors.ErrIdentityNotFound
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return toIdentity(disk), nil
}

// Update applies fn to the stored identity and moves the email index when the email changes.
func (u *UserRepository) Update(id string, fn func(*domain.Identity) error) (domain.Identity, error) {
	var updated domain.Identity
	err := update(u.db, func(txn *badger.Txn) error {
		var disk DiskUser
		err := getJSON(txn, userKey(id), &disk)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		identity := toIdentity(disk)
		if err = fn(&identity); err != nil {
			return err
		}
		identity.ID = disk.ID
		identity.UpdatedAt = time.Now().UTC()

		if identity.Email != disk.Email {
			if _, err = txn.Get(emailKey(identity.Email)); err == nil {
				return errors.ErrEmailInUse
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err = txn.Delete(emailKey(disk.Email)); err != nil {
				return err
			}
			if err = txn.Set(emailKey(identity.Email), []byte(identity.ID)); err != nil {
				return err
			}
		}
		updated = identity
		return setJSON(txn, userKey(id), fromIdentity(identity))
	})
	return updated, err
}

func (u *UserRepository) Delete(id string) error {
	return update(u.db, func(txn *badger.Txn) error {
		var disk DiskUser
		err := getJSON(txn, userKey(id), &disk)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		if err = txn.Delete(emailKey(disk.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func (u *UserRepository) List(filter UserFilter) ([]domain.Identity, int, error) {
	disks, err := scanPrefix[DiskUser](u.db, []byte("user:"))
	if err != nil {
		return nil, 0, err
	}
	identities := lo.FilterMap(disks, func(item DiskUser, _ int) (domain.Identity, bool) {
		return toIdentity(item), filter.Role == nil || item.Role == string(*filter.Role)
	})
	sort.SliceStable(identities, func(i, j int) bool {
		return identities[i].CreatedAt.After(identities[j].CreatedAt)
	})
	return paginate(identities, filter.Page, filter.Limit), len(identities), nil
}

func (u *UserRepository) Count() (int, error) {
	count := 0
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func fromIdentity(identity domain.Identity) DiskUser {
	return DiskUser{
		ID:           identity.ID,
		Name:         identity.Name,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		Role:         string(identity.Role),
		IsActive:     identity.IsActive,
		AssignedRoom: identity.AssignedRoomID,
		CreatedBy:    identity.CreatedBy,
		LastLogin:    identity.LastLoginAt,
		CreatedAt:    identity.CreatedAt.UTC(),
		UpdatedAt:    identity.UpdatedAt.UTC(),
	}
}

func toIdentity(disk DiskUser) domain.Identity {
	return domain.Identity{
		ID:             disk.ID,
		Name:           disk.Name,
		Email:          disk.Email,
		PasswordHash:   disk.PasswordHash,
		Role:           domain.Role(disk.Role),
		IsActive:       disk.IsActive,
		AssignedRoomID: disk.AssignedRoom,
		CreatedBy:      disk.CreatedBy,
		LastLoginAt:    disk.LastLogin,
		CreatedAt:      disk.CreatedAt.UTC(),
		UpdatedAt:      disk.UpdatedAt.UTC(),
	}
}
