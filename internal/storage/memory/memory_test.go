package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/jailstore/internal/storage"
)

func TestStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := New(0)

	_, err := s.Get(ctx, "tree")
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "tree", []byte("v1")))
	got, err := s.Get(ctx, "tree")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// Returned values do not alias the stored copy.
	got[0] = 'x'
	again, err := s.Get(ctx, "tree")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again)

	require.NoError(t, s.Delete(ctx, "tree"))
	require.NoError(t, s.Delete(ctx, "tree"))
	_, err = s.Get(ctx, "tree")
	assert.ErrorIs(t, err, storage.ErrSlotNotFound)
	assert.Zero(t, s.Used())
	require.NoError(t, s.Close())
}

func TestStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := New(10)

	require.NoError(t, s.Put(ctx, "k", []byte("12345")))
	assert.Equal(t, int64(6), s.Used())

	// Replacing a value only counts the difference.
	require.NoError(t, s.Put(ctx, "k", []byte("123456789")))
	assert.Equal(t, int64(10), s.Used())

	err := s.Put(ctx, "k", []byte("1234567890"))
	require.Error(t, err)
	assert.True(t, storage.IsQuotaExceeded(err))

	err = s.Put(ctx, "other", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("123456789"), got, "failed put keeps the old value")
}
