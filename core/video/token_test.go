package video

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedTokenSource(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := NewSignedTokenSource("secret", 2*time.Hour, clock)
	req := StreamRequest{LectureID: "lecture-1", UserID: "user-1", ViewID: "view-1"}

	tok, err := src.Token(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Serial)
	assert.Equal(t, clock.Now().Add(2*time.Hour).Unix(), tok.ExpiresAt.Unix())

	claims, err := src.Parse(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "lecture-1", claims.LectureID)
	assert.Equal(t, "view-1", claims.ViewID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, tok.Serial, claims.Id)

	other, err := src.Token(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Serial, other.Serial, "every token gets its own serial")

	t.Run("wrong key", func(t *testing.T) {
		_, err := NewSignedTokenSource("other", time.Hour, clock).Parse(tok.Value)
		assert.Equal(t, ErrInvalidStreamToken, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := src.Parse("not.a.token")
		assert.Equal(t, ErrInvalidStreamToken, err)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2*time.Hour + time.Second)
		_, err := src.Parse(tok.Value)
		assert.Equal(t, ErrInvalidStreamToken, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := src.Token(ctx, req)
		assert.Equal(t, context.Canceled, err)
	})
}
