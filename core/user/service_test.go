package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
	emailsvc "github.com/trezcool/classroom/services/email"
	inmemdb "github.com/trezcool/classroom/storage/database/inmem"
	testutil "github.com/trezcool/classroom/tests"
)

type fixture struct {
	repo     user.Repository
	svc      user.Service
	mailSvc  *emailsvc.ConsoleServiceMock
	validate *validator.Validate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core.ParseEmailTemplates(core.NopLogger, true)
	user.LoadCommonPasswords(core.NopLogger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	conf := testutil.NewConfig()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return &fixture{
		repo:     repo,
		svc:      user.NewServiceMock(repo, mailSvc, conf),
		mailSvc:  mailSvc,
		validate: validate,
	}
}

func invalidFields(err error) []string {
	var fields []string
	switch e := err.(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			fields = append(fields, fe.Field())
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

func TestNewUser_Validate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.repo, "Taken", "taken", "taken@test.cd", "", nil, true)

	const strongPwd = "Str0ng!Lesson#42"
	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields []string
	}{
		{
			name:       "missing username and email",
			nu:         user.NewUser{Name: "John", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"username", "email"},
		},
		{
			name:       "password mismatch",
			nu:         user.NewUser{Name: "John", Username: "john", Password: strongPwd, PasswordConfirm: "nope"},
			wantFields: []string{"password_confirm"},
		},
		{
			name:       "weak password",
			nu:         user.NewUser{Name: "John", Username: "john", Password: "password", PasswordConfirm: "password"},
			wantFields: []string{"password"},
		},
		{
			name:       "common password",
			nu:         user.NewUser{Name: "John", Username: "john", Password: "Passw0rd!", PasswordConfirm: "Passw0rd!"},
			wantFields: []string{"password"},
		},
		{
			name:       "unknown role",
			nu:         user.NewUser{Name: "John", Username: "john", Password: strongPwd, PasswordConfirm: strongPwd, Roles: []string{"janitor"}},
			wantFields: []string{"roles"},
		},
		{
			name:       "taken username",
			nu:         user.NewUser{Name: "John", Username: " TAKEN ", Password: strongPwd, PasswordConfirm: strongPwd},
			wantFields: []string{"username", "email"},
		},
		{
			name: "valid",
			nu:   user.NewUser{Name: "  John  ", Username: "John_Doe", Password: strongPwd, PasswordConfirm: strongPwd, Roles: []string{user.RoleStudent}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, f.validate, f.svc)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, "John", tt.nu.Name)
				assert.Equal(t, "john_doe", tt.nu.Username)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.wantFields, invalidFields(err))
		})
	}
}

func TestService_CreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	usr, err := f.svc.Create(ctx, user.NewUser{Name: "John", Username: "john", Email: "john@test.cd", Password: "Str0ng!Lesson#42", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("Str0ng!Lesson#42"))

	got, err := f.svc.GetByUsernameOrEmail(ctx, " JOHN@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	inactive := false
	uu := user.UpdateUser{Name: "", Email: "johnny@test.cd", IsActive: &inactive, Roles: []string{user.RoleTeacher}}
	require.NoError(t, uu.Validate(ctx, got, f.validate, f.svc))
	updated, err := f.svc.Update(ctx, usr.ID, uu)
	require.NoError(t, err)
	assert.Equal(t, "John", updated.Name)
	assert.Equal(t, "john", updated.Username)
	assert.Equal(t, "johnny@test.cd", updated.Email)
	assert.False(t, updated.Active())
	assert.True(t, updated.IsTeacher())
	assert.False(t, updated.UpdatedAt.Before(usr.UpdatedAt))

	withLogin, err := f.svc.SetLastLogin(ctx, updated)
	require.NoError(t, err)
	assert.False(t, withLogin.LastLogin.IsZero())

	_, err = f.svc.Update(ctx, "ghost", uu)
	assert.Equal(t, user.ErrNotFound, err)

	require.NoError(t, f.svc.Delete(ctx, usr.ID))
	_, err = f.svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
	assert.NoError(t, f.svc.Delete(ctx))
}

func TestService_PasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.repo, "John", "john", "john@test.cd", "Old!Passw0rd#1", nil, true)
	testutil.CreateUser(t, f.repo, "Gone", "gone", "gone@test.cd", "Old!Passw0rd#1", nil, false)

	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "gone@test.cd"))
	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "ghost@test.cd"))
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "JOHN@test.cd"))
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	uid := user.EncodeUID(usr)
	assert.True(t, strings.Contains(sent[0].TextContent, "/password-reset/"+uid+"/"), sent[0].TextContent)

	token, err := user.MakeResetToken(f.svc, usr)
	require.NoError(t, err)

	bad := user.ResetUserPassword{UID: uid, Token: "bad-token", Password: "N3w!Lesson#Pwd", PasswordConfirm: "N3w!Lesson#Pwd"}
	err = f.svc.ResetPassword(ctx, bad)
	assert.Equal(t, []string{"token"}, invalidFields(err))

	data := user.ResetUserPassword{UID: uid, Token: token, Password: "N3w!Lesson#Pwd", PasswordConfirm: "N3w!Lesson#Pwd"}
	require.NoError(t, data.Validate(f.validate))
	require.NoError(t, f.svc.ResetPassword(ctx, data))

	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("N3w!Lesson#Pwd"))

	// the password hash changed so the token cannot be replayed
	assert.Error(t, f.svc.ResetPassword(ctx, data))
}
