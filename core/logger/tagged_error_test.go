package logger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTag(t *testing.T) {
	base := errors.New("catalog not found")
	err := WithTag("probe", base)

	assert.Equal(t, "catalog not found", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "probe", ErrorTag(fmt.Errorf("run: %w", err)))
}

func TestErrorf(t *testing.T) {
	base := errors.New("connection refused")
	err := Errorf("serve", "start on %s: %w", ":8080", base)

	assert.EqualError(t, err, "start on :8080: connection refused")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "serve", ErrorTag(err))
}

func TestTagOr_OutermostWins(t *testing.T) {
	inner := WithTag("config", errors.New("bad yaml"))
	outer := WithTag("serve", fmt.Errorf("load: %w", inner))

	assert.Equal(t, "serve", TagOr(outer, "cli"))
	assert.Equal(t, "cli", TagOr(errors.New("untagged"), "cli"))
}

func TestWithTag_Nil(t *testing.T) {
	assert.Nil(t, WithTag("cli", nil))
	assert.Empty(t, ErrorTag(nil))
	assert.Empty(t, ErrorTag(errors.New("untagged")))
}
