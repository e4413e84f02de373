package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
	sqlxrepos "github.com/trezcool/classroom/storage/database/sqlx"
	testutil "github.com/trezcool/classroom/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdminOwner}, true, now.Add(-time.Hour))
	teacher := testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true, now.Add(-time.Minute))
	student := testutil.CreateUser(t, repo, "Student", "", "student@test.cd", "", []string{user.RoleStudent}, false, now)

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUserExists, repo.CheckUsernameUniqueness(ctx, "admin", "", nil))
		assert.Equal(t, user.ErrUserExists, repo.CheckUsernameUniqueness(ctx, "", "student@test.cd", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "admin", "admin@test.cd", []user.User{admin}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "new", "new@test.cd", nil))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{ID: teacher.ID})
		require.NoError(t, err)
		assert.Equal(t, "teacher", got.Username)

		got, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"student@test.cd"}})
		require.NoError(t, err)
		assert.Equal(t, student.ID, got.ID)
		assert.False(t, got.Active())

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{Email: "ghost@test.cd"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		active := true
		users, err := repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{"admin:", "teacher:"}, IsActive: &active}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, admin.ID, users[0].ID)
		assert.Equal(t, teacher.ID, users[1].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Search: "STUD"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, student.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "password_hash"}})
		require.NoError(t, err)
		assert.Len(t, users, 3)
	})

	t.Run("update", func(t *testing.T) {
		usr := teacher
		usr.Name = "Head Teacher"
		usr.LastLogin = now
		got, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)
		assert.Equal(t, "Head Teacher", got.Name)

		got, err = repo.GetUser(ctx, user.GetFilter{Username: "teacher"})
		require.NoError(t, err)
		assert.True(t, now.Equal(got.LastLogin))

		usr.ID = "00000000-0000-0000-0000-000000000000"
		_, err = repo.UpdateUser(ctx, usr)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		cnt, err := repo.DeleteUsersByID(ctx, []string{student.ID, "00000000-0000-0000-0000-000000000000"})
		require.NoError(t, err)
		assert.Equal(t, 1, cnt)
	})
}
