package echoapi

import (
	"context"
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
)

const (
	tokenAudience  = "Classroom"
	contextUserKey = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// The token ID (jti) is the tracked session ID.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool     `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool     `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles        []string `json:"roles,omitempty"`
}

func (c Claims) person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

type jwtAuth struct {
	config          middleware.JWTConfig
	issuer          string
	expirationDelta time.Duration
	refreshDelta    time.Duration
	now             func() time.Time
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	return &jwtAuth{
		config: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "userToken",
			Claims:        new(Claims),
		},
		issuer:          conf.AppName,
		expirationDelta: conf.Server.JWTExpirationDelta,
		refreshDelta:    conf.Server.JWTRefreshExpirationDelta,
		now:             time.Now,
	}
}

func (a *jwtAuth) userClaims(usr user.User, sessionID string, origIat ...int64) *Claims {
	now := a.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			Issuer:    a.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.config.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *jwtAuth) contextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(a.config.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (a *jwtAuth) contextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := a.contextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (a *jwtAuth) contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := a.contextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) && claims.Roles[i] == role {
				return true
			}
		}
	}
	return false
}

// authenticate checks the credentials and opens a tracked session for the user.
func (a *jwtAuth) authenticate(ctx context.Context, uname, pwd string, svc user.Service, registry *session.Registry) (*Claims, session.Session, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, session.Session{}, errAuthenticationFailed
		}
		return nil, session.Session{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, session.Session{}, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, session.Session{}, errAccountDeactivated
	}
	if usr, err = svc.SetLastLogin(ctx, usr); err != nil {
		return nil, session.Session{}, errors.Wrap(err, "setting lastLogin")
	}

	sess, err := registry.Start(ctx, usr.ID)
	if err != nil {
		return nil, session.Session{}, errors.Wrap(err, "starting session")
	}
	return a.userClaims(usr, sess.ID), sess, nil
}

// refreshToken issues a new token for the same session, within the refresh window of the original login.
func (a *jwtAuth) refreshToken(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := a.contextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := a.contextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshDelta)
	if a.now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.generateToken(a.userClaims(usr, claims.Id, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
