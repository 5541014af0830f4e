package testutil

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockIndexLock_LooksLikeGit(t *testing.T) {
	msg := ErrMockIndexLock.Error()
	assert.True(t, strings.HasPrefix(msg, "fatal: "))
	assert.Contains(t, msg, "index.lock")
	assert.Contains(t, msg, "File exists")
}

func TestMockErrors_MatchOnlyThemselves(t *testing.T) {
	assert.ErrorIs(t, fmt.Errorf("ls-files: %w", ErrMockIndexLock), ErrMockIndexLock)
	assert.NotErrorIs(t, ErrMockNetwork, ErrMockIndexLock)
	assert.NotErrorIs(t, errors.New(ErrMockNetwork.Error()), ErrMockNetwork)
}
