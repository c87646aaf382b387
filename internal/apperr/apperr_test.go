package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(Missing("conversation")))
	assert.Equal(t, InvalidInput, KindOf(fmt.Errorf("bind: %w", Invalid("bad %s", "status"))))
	assert.Equal(t, ServerFault, KindOf(errors.New("disk on fire")))
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("send: %w", New(Forbidden, "user is blocked"))
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestMessageHidesServerFaults(t *testing.T) {
	assert.Equal(t, "user is blocked", Message(New(Forbidden, "user is blocked")))
	assert.Equal(t, "internal server error", Message(Wrap(ServerFault, "insert message", errors.New("pq: deadlock"))))
	assert.Equal(t, "internal server error", Message(errors.New("raw")))
}
