package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	k := ObjectKey("u1", `C:\photos\cert.png`)
	require.True(t, strings.HasPrefix(k, "achievements/u1/"))
	require.True(t, strings.HasSuffix(k, "-cert.png"))
	require.NotEqual(t, k, ObjectKey("u1", "cert.png"))
	require.True(t, strings.HasSuffix(ObjectKey("u1", "../../etc/passwd"), "-passwd"))
	require.True(t, ValidKey(k))
}

func TestValidKey(t *testing.T) {
	for _, key := range []string{
		"",
		"achievements/",
		"achievements/u1",
		"other/u1/x.png",
		"achievements/../secrets/x",
		"achievements/u1//x.png",
		"achievements/u1/a/b.png",
		"achievements/../x.png",
	} {
		require.False(t, ValidKey(key), key)
	}
	require.True(t, ValidKey("achievements/u1/3f2a-medal.jpg"))
	require.True(t, ValidKey("achievements/u1/3f2a-v1..2.jpg"))
}

func TestMemoryAttachments(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAttachments()
	key, err := m.Upload(ctx, "u1", "medal.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	require.NoError(t, err)
	require.True(t, ValidKey(key))
	// a key, not a link with an expiry
	require.NotContains(t, key, "://")
	require.NotContains(t, key, "?")

	obj, err := m.Open(ctx, key)
	require.NoError(t, err)
	defer obj.Body.Close()
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(b))
	require.Equal(t, int64(4), obj.Size)
	require.Equal(t, "image/jpeg", obj.ContentType)

	_, err = m.Open(ctx, "achievements/u1/missing.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}
