package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classroom/core"
)

// Roles are prefixed by their portal; RoleStartsWith(RoleAdmin) matches every admin role.
const (
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"
	RoleTeacher        = "teacher:"
	RoleStudent        = "student:"
)

type Role struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	priority int
}

// Roles lists the assignable roles, lowest privilege first.
var Roles = []Role{
	{Name: "Student", Value: RoleStudent, priority: 1},
	{Name: "Teacher", Value: RoleTeacher, priority: 11},
	{Name: "Admin", Value: RoleAdmin, priority: 21},
	{Name: "Admin Principal", Value: RoleAdminPrincipal, priority: 29},
	{Name: "Admin Owner", Value: RoleAdminOwner, priority: 30},
}

var AllRoles = func() []string {
	values := make([]string, 0, len(Roles))
	for _, r := range Roles {
		values = append(values, r.Value)
	}
	return values
}()

// MaxRolePriority returns the highest priority among roles, 0 for unknown or no roles.
// Granting a role requires a priority at least as high.
func MaxRolePriority(roles []string) int {
	max := 0
	for _, value := range roles {
		for _, r := range Roles {
			if r.Value == value && r.priority > max {
				max = r.priority
			}
		}
	}
	return max
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active reports whether the account may log in. Users created without an explicit flag are active.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// Person identifies the user in log entries.
func (u User) Person() core.Person {
	return core.Person{ID: u.ID, Username: u.Username, Email: u.Email}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.StructCtx(ctx, nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = cleanOr(core.CleanString(uu.Name), origUsr.Name)
	uu.Username = cleanOr(core.CleanString(uu.Username, true /* lower */), origUsr.Username)
	uu.Email = cleanOr(core.CleanString(uu.Email, true /* lower */), origUsr.Email)

	if err := validate.StructCtx(ctx, uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

// cleanOr keeps the current value when no new one was provided.
func cleanOr(val, current string) string {
	if val == "" {
		return current
	}
	return val
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single user. The first non-empty field wins.
// UsernameOrEmail holds a username, an email or both, in that order.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
