package photos

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/posoja/internal/db"
)

func TestDBStoreRoundTrip(t *testing.T) {
	s := &DBStore{DB: db.NewTestDB(t)}
	ctx := context.Background()
	key := NewKey(7)

	require.NoError(t, s.Put(ctx, key, []byte("first"), "image/jpeg"))
	require.NoError(t, s.Put(ctx, key, []byte("second"), "image/jpeg"))

	data, mime, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, "image/jpeg", mime)

	require.NoError(t, s.Delete(ctx, key))
	_, _, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewKeyUnique(t *testing.T) {
	a, b := NewKey(1), NewKey(1)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "copies/1/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewS3Store(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		Bucket:    "posoja",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "posoja", s.Bucket)
	assert.NotNil(t, s.Client)
}
