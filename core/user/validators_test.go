package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
)

func TestPasswordPolicyViolation(t *testing.T) {
	LoadCommonPasswords(core.NopLogger)

	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678901", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdef123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdef12!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Jonathan1!", want: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd1", want: pwdNoCommonTag},
		{name: "valid", pwd: "Str0ng!Lesson#42", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passwordPolicyViolation(tt.pwd, "Someone", "jonathan", "mail@test.cd"))
		})
	}
}

func TestIsCommonPassword(t *testing.T) {
	LoadCommonPasswords(core.NopLogger)
	assert.True(t, isCommonPassword("QWERTY"))
	assert.False(t, isCommonPassword("Str0ng!Lesson#42"))
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 30, MaxRolePriority([]string{RoleStudent, RoleAdminOwner}))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleTeacher, "unknown"}))
	assert.Equal(t, 0, MaxRolePriority(nil))
}

func TestAllRoles(t *testing.T) {
	require.Len(t, AllRoles, len(Roles))
	for i, r := range Roles {
		assert.Equal(t, r.Value, AllRoles[i])
	}
}
