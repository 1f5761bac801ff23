package mediasvc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

// smallest valid PNG header
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newStore(t *testing.T) *DiskStore {
	conf := &core.Config{Media: core.MediaConfig{Dir: t.TempDir(), BaseURL: "/media/"}}
	return NewDiskStore(conf)
}

func TestDiskStore_SaveDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	url, err := s.Save(ctx, "updates/a.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "/media/updates/a.png", url)

	got, err := os.ReadFile(filepath.Join(s.Dir(), "updates", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(s.Dir(), "updates", "a.png"))
	assert.True(t, os.IsNotExist(err))

	// deleting again is fine
	assert.NoError(t, s.Delete(ctx, url))
	assert.Equal(t, errForeignURL, s.Delete(ctx, "https://cdn.test/a.png"))
}

func TestDiskStore_SaveStaysInDir(t *testing.T) {
	s := newStore(t)

	url, err := s.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/media/etc/passwd", url)
	_, err = os.Stat(filepath.Join(s.Dir(), "etc", "passwd"))
	assert.NoError(t, err)

	_, err = s.Save(context.Background(), "..", strings.NewReader("x"))
	assert.Equal(t, errOutsideRoot, err)
}

func TestDiskStore_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newStore(t).Save(ctx, "a.png", bytes.NewReader(pngBytes))
	assert.Equal(t, context.Canceled, err)
}

func TestDetectContentType(t *testing.T) {
	r := bytes.NewReader(pngBytes)
	ct, err := DetectContentType(r)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, int64(len(pngBytes)), r.Size())
	assert.Equal(t, len(pngBytes), r.Len()) // rewound

	ct, err = DetectContentType(strings.NewReader("just some text"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "text/plain"))
}
