package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStorage opens a store in a temporary directory closed at test end.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "db"), DefaultOptions())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set([]byte("k"), []byte("v1")))
	require.NoError(t, s.Set([]byte("k"), []byte("v2")))

	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	ok, err := s.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete([]byte("k")))

	got, err = s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = s.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestSetBatchAndPrefix tests atomic batches and bounded prefix scans.
func TestSetBatchAndPrefix(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SetBatch([]KeyValue{
		{Key: []byte("tx:b"), Value: []byte("2")},
		{Key: []byte("tx:a"), Value: []byte("1")},
		{Key: []byte("v:a"), Value: nil},
		{Key: []byte("tx;"), Value: []byte("outside")},
	}))

	var keys []string
	err := s.IteratePrefix([]byte("tx:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tx:a", "tx:b"}, keys)

	stop := errors.New("stop")
	calls := 0
	err = s.IteratePrefix([]byte("tx:"), func(key, value []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// TestReopen tests that data survives a close and reopen.
func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	s, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Set([]byte("durable"), []byte("yes")))
	require.NoError(t, s.Close())

	s, err = Open(path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get([]byte("durable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), got)
}

func TestOpenInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.SyncInterval = 0

	_, err := Open(t.TempDir(), opts)
	assert.Error(t, err)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("tx;"), prefixUpperBound([]byte("tx:")))
	assert.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
}
