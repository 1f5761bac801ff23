package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers...)
}

// checkUniqueness must be called with the lock held.
func (repo *userRepository) checkUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.state.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	usr = cloneUser(usr)
	journal(exec, "users", repo.db.state.users, usr.ID, cloneUser)
	repo.db.state.users[usr.ID] = usr
	return cloneUser(usr), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.state.users))
	for _, usr := range repo.db.state.users {
		if filter != nil && !matchUser(usr, filter) {
			continue
		}
		users = append(users, cloneUser(usr))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" &&
		!containsFold(usr.Name, filter.Search) && !containsFold(usr.Username, filter.Search) && !containsFold(usr.Email, filter.Search) {
		return false
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			for _, r := range usr.Roles {
				if strings.HasPrefix(strings.ToLower(r), strings.ToLower(role)) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "is_active":
		if a.IsActive == b.IsActive {
			return 0
		}
		if !a.IsActive {
			return -1
		}
		return 1
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return compareTimes(a.LastLogin, b.LastLogin)
	}
	return 0
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.state.users[filter.ID]; ok {
			return cloneUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}

	var match func(usr user.User) bool
	switch {
	case filter.Username != "":
		match = func(usr user.User) bool { return usr.Username == filter.Username }
	case filter.Email != "":
		match = func(usr user.User) bool { return usr.Email == filter.Email }
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		match = func(usr user.User) bool {
			return (usr.Username != "" && usr.Username == uname) || (usr.Email != "" && usr.Email == email)
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.state.users {
		if match(usr) {
			return cloneUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.state.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	usr = cloneUser(usr)
	journal(exec, "users", repo.db.state.users, usr.ID, cloneUser)
	repo.db.state.users[usr.ID] = usr
	return cloneUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.state.users[id]; ok {
			journal(exec, "users", repo.db.state.users, id, cloneUser)
			delete(repo.db.state.users, id)
			cnt++
		}
	}
	return cnt, nil
}
