package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOfWrapped(t *testing.T) {
	base := Auth(CodeBadCredential, "wrong email or password", nil)
	wrapped := fmt.Errorf("sign in: %w", base)

	require.True(t, IsAuth(wrapped))
	require.False(t, IsStore(wrapped))
	assert.Equal(t, CodeBadCredential, CodeOf(wrapped))
	assert.Equal(t, "wrong email or password", Message(wrapped))
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Store(CodeNetwork, "backend unreachable", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeNetwork, CodeOf(err))
	assert.Contains(t, err.Error(), "store/network")
}

func TestConfigAndUnknown(t *testing.T) {
	err := Config("MONGODB_URI", "is not set")
	assert.True(t, IsConfig(err))
	assert.Equal(t, CodeConfig, CodeOf(err))
	assert.Contains(t, Message(err), "service unavailable")

	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, "", Message(nil))
}
