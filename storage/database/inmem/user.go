package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, copyUser(*u))
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.table {
		if excluded[usr.ID] {
			continue
		}
		if (username != "" && usr.Username == username) || (email != "" && usr.Email == email) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.New().String()
	if usr.IsActive == nil {
		usr.SetActive(true)
	}
	stored := copyUser(usr)
	repo.db.table[usr.ID] = &stored
	return copyUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.table))
	for _, usr := range repo.query() {
		if matches(usr, filter) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var match func(u *user.User) bool
	switch {
	case filter.ID != "":
		if usr, ok := repo.db.table[filter.ID]; ok {
			return copyUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	case filter.Username != "":
		match = func(u *user.User) bool { return u.Username == filter.Username }
	case filter.Email != "":
		match = func(u *user.User) bool { return u.Email == filter.Email }
	case len(filter.UsernameOrEmail) > 0:
		vals := filter.UsernameOrEmail
		match = func(u *user.User) bool {
			for _, v := range vals {
				if v != "" && (u.Username == v || u.Email == v) {
					return true
				}
			}
			return false
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.table {
		if match(usr) {
			return copyUser(*usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	stored := copyUser(usr)
	repo.db.table[usr.ID] = &stored
	return copyUser(usr), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}

// copyUser detaches the slices and pointers of usr from the stored row.
func copyUser(usr user.User) user.User {
	if usr.Roles != nil {
		usr.Roles = append([]string(nil), usr.Roles...)
	}
	if usr.PasswordHash != nil {
		usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	}
	if usr.IsActive != nil {
		usr.SetActive(*usr.IsActive)
	}
	return usr
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Username), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(strings.ToLower(role)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
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

// sortUsers applies the supported orderings in sequence; unknown fields are ignored.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	less := make([]func(a, b user.User) int, 0, len(ordering))
	for _, ord := range ordering {
		cmp := userComparator(ord.Field)
		if cmp == nil {
			continue
		}
		asc := ord.Ascending
		less = append(less, func(a, b user.User) int {
			if asc {
				return cmp(a, b)
			}
			return cmp(b, a)
		})
	}
	if len(less) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, cmp := range less {
			if c := cmp(users[i], users[j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func userComparator(field string) func(a, b user.User) int {
	switch field {
	case "name":
		return func(a, b user.User) int { return strings.Compare(a.Name, b.Name) }
	case "username":
		return func(a, b user.User) int { return strings.Compare(a.Username, b.Username) }
	case "email":
		return func(a, b user.User) int { return strings.Compare(a.Email, b.Email) }
	case "created_at":
		return func(a, b user.User) int { return compareTime(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano()) }
	case "updated_at":
		return func(a, b user.User) int { return compareTime(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano()) }
	case "last_login":
		return func(a, b user.User) int { return compareTime(a.LastLogin.UnixNano(), b.LastLogin.UnixNano()) }
	}
	return nil
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
