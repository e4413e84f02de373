package video

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

const streamAudience = "stream"

var ErrInvalidStreamToken = errors.New("invalid stream token")

// StreamRequest identifies the view a stream token is issued for.
type StreamRequest struct {
	LectureID string
	UserID    string
	ViewID    string
}

type StreamToken struct {
	Value     string    `json:"value"`
	Serial    string    `json:"serial"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSource is any service that can issue stream tokens.
type TokenSource interface {
	Token(ctx context.Context, req StreamRequest) (StreamToken, error)
}

// StreamClaims are the claims of a stream token. The subject is the viewer.
type StreamClaims struct {
	jwt.StandardClaims
	LectureID string `json:"lecture_id"`
	ViewID    string `json:"view_id"`
}

// SignedTokenSource issues HS256 signed stream tokens.
type SignedTokenSource struct {
	key   []byte
	ttl   time.Duration
	clock clockwork.Clock
}

var _ TokenSource = (*SignedTokenSource)(nil)

func NewSignedTokenSource(secret string, ttl time.Duration, clock clockwork.Clock) *SignedTokenSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SignedTokenSource{key: []byte(secret), ttl: ttl, clock: clock}
}

func (src *SignedTokenSource) Token(ctx context.Context, req StreamRequest) (StreamToken, error) {
	if err := ctx.Err(); err != nil {
		return StreamToken{}, err
	}

	now := src.clock.Now()
	exp := now.Add(src.ttl)
	claims := &StreamClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Subject:   req.UserID,
			Audience:  streamAudience,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
		LectureID: req.LectureID,
		ViewID:    req.ViewID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(src.key)
	if err != nil {
		return StreamToken{}, errors.Wrap(err, "signing stream token")
	}
	return StreamToken{Value: ss, Serial: claims.Id, ExpiresAt: time.Unix(exp.Unix(), 0).UTC()}, nil
}

// Parse verifies the signature and expiry of a stream token against the source clock.
func (src *SignedTokenSource) Parse(value string) (*StreamClaims, error) {
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	claims := new(StreamClaims)
	_, err := parser.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
		return src.key, nil
	})
	if err != nil {
		return nil, ErrInvalidStreamToken
	}
	if !claims.VerifyExpiresAt(src.clock.Now().Unix(), true) || !claims.VerifyAudience(streamAudience, true) {
		return nil, ErrInvalidStreamToken
	}
	return claims, nil
}
