package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePutGet(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	k, err := s.Put("reports/peru/lima.json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "reports/peru/lima.json", k)

	rc, err := s.Get(k)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"a":1}`, string(b))

	// overwrite
	_, err = s.Put(k, strings.NewReader(`{"a":2}`))
	require.NoError(t, err)
	rc, err = s.Get(k)
	require.NoError(t, err)
	b, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"a":2}`, string(b))

	_, err = s.Get("reports/none.json")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFSStoreKeysStayInsideBase(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	k, err := s.Put("../../escape.json", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.json", k)

	_, err = s.Put("/", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFSStoreList(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	for _, k := range []string{"reports/b.json", "reports/a.json", "other/c.json"} {
		_, err := s.Put(k, strings.NewReader("{}"))
		require.NoError(t, err)
	}
	keys, err := s.List("reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.json", "reports/b.json"}, keys)
}
