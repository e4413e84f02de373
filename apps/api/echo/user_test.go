package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
	testutil "github.com/trezcool/classroom/tests"
)

func TestUserApi_login(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "John", "johndoe", "john@test.cd", testPwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, f.usrRepo, "Gone", "gone", "gone@test.cd", testPwd, nil, false)

	runHTTPTests(t, f.app, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshalObj(t, LoginRequest{Username: "ghost", Password: testPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshalObj(t, LoginRequest{Username: "johndoe", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshalObj(t, LoginRequest{Username: "gone", Password: testPwd}),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})
	assert.Equal(t, 0, f.registry.Len())

	res := f.login(t, " JOHN@test.cd ")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, usr.ID, res.Session.UserID)
	assert.Equal(t, 15, res.Session.MinutesUntilInactivityTimeout)
	assert.Equal(t, 1, f.registry.Len())

	got, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())
}

func TestUserApi_logout(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "John", "johndoe", "john@test.cd", testPwd, nil, true)
	res := f.login(t, "johndoe")

	rec := f.do(http.MethodPost, "/v1/users/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, errMissingToken)), rec.Body.String())

	rec = f.do(http.MethodPost, "/v1/users/logout", res.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, 0, f.registry.Len())

	// the token is still signed and unexpired but its session is gone
	rec = f.do(http.MethodPost, "/v1/users/token-refresh", res.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "session not found"}`, rec.Body.String())

	events, err := f.registry.Events(context.Background(), res.Session.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, session.EventStarted, events[0].Kind)
	assert.Equal(t, session.EventEnded, events[1].Kind)
}

func TestUserApi_tokenRefresh(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "John", "johndoe", "john@test.cd", testPwd, nil, true)
	res := f.login(t, "johndoe")

	rec := f.do(http.MethodPost, "/v1/users/token-refresh", res.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var refreshed loginResult
	unmarshalBody(t, rec, &refreshed)
	require.NotEmpty(t, refreshed.Token)

	// the refreshed token belongs to the same session
	rec = f.do(http.MethodGet, "/v1/sessions/current", refreshed.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess session.Session
	unmarshalBody(t, rec, &sess)
	assert.Equal(t, res.Session.ID, sess.ID)
}

func TestUserApi_admin(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "admin@test.cd", testPwd, []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, f.usrRepo, "Student", "student", "student@test.cd", testPwd, []string{user.RoleStudent}, true)
	adminToken := f.login(t, "admin").Token
	studentToken := f.login(t, "student").Token

	runHTTPTests(t, f.app, []httpTest{
		{
			name:     "student cannot list users",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin cannot grant a higher role",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			token:    adminToken,
			body:     []byte(`{"name": "Boss", "username": "boss", "password": "Str0ng!Lesson#42", "password_confirm": "Str0ng!Lesson#42", "roles": ["admin:owner"]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"roles": "not enough rights to set these roles"}`),
		},
		{
			name:     "student sees their own profile",
			method:   http.MethodGet,
			path:     "/v1/users/" + student.ID,
			token:    studentToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "student cannot change their roles",
			method:   http.MethodPut,
			path:     "/v1/users/" + student.ID,
			token:    studentToken,
			body:     []byte(`{"roles": ["admin:"]}`),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown user",
			method:   http.MethodGet,
			path:     "/v1/users/ghost",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
	})

	rec := f.do(http.MethodPost, "/v1/users/register", adminToken,
		[]byte(`{"name": "Teacher", "username": "teacher", "password": "Str0ng!Lesson#42", "password_confirm": "Str0ng!Lesson#42", "roles": ["teacher:"]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/users?role=teacher:&ordering=-username", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []user.User
	unmarshalBody(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "teacher", users[0].Username)
}
