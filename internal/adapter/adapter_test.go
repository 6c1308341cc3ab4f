package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/jailstore/internal/blobfs"
	"github.com/objectfs/jailstore/internal/config"
	"github.com/objectfs/jailstore/internal/hostfs"
	"github.com/objectfs/jailstore/internal/memfs"
	"github.com/objectfs/jailstore/internal/metrics"
	"github.com/objectfs/jailstore/pkg/errors"
	"github.com/objectfs/jailstore/pkg/types"
)

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		uri      string
		expected Location
		wantErr  bool
	}{
		{name: "memory", uri: "memory://cache", expected: Location{Scheme: SchemeMemory, Name: "cache"}},
		{name: "memory without name", uri: "memory://", expected: Location{Scheme: SchemeMemory, Name: "default"}},
		{name: "file", uri: "file:///var/lib/site", expected: Location{Scheme: SchemeFile, HostPath: "/var/lib/site"}},
		{name: "file with trailing slash", uri: "file:///srv/", expected: Location{Scheme: SchemeFile, HostPath: "/srv"}},
		{name: "file on localhost", uri: "file://localhost/srv", expected: Location{Scheme: SchemeFile, HostPath: "/srv"}},
		{name: "badger slot", uri: "badger://site", expected: Location{Scheme: SchemeBadger, Name: "site"}},
		{name: "badger default slot", uri: "badger://", expected: Location{Scheme: SchemeBadger}},
		{name: "s3 slot", uri: "s3://my-bucket/sites/main", expected: Location{Scheme: SchemeS3, Bucket: "my-bucket", Name: "sites/main"}},
		{name: "s3 without slot", uri: "s3://my.bucket.with.dots", expected: Location{Scheme: SchemeS3, Bucket: "my.bucket.with.dots"}},
		{name: "s3 without bucket", uri: "s3://", wantErr: true},
		{name: "remote file host", uri: "file://server/share", wantErr: true},
		{name: "unsupported scheme", uri: "gcs://my-bucket", wantErr: true},
		{name: "http scheme", uri: "https://bucket", wantErr: true},
		{name: "invalid URI", uri: "://invalid", wantErr: true},
		{name: "empty URI", uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedURI), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, location)
		})
	}
}

func testConfig(uri string) *config.Configuration {
	cfg := config.NewDefault()
	cfg.Store.URI = uri
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestOpen_MemoryEnginesAreShared(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("memory://shared-" + t.Name())
	cfg.Store.Jail = "/site"
	cfg.Store.Pwd = "pages"

	first, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer first.Close()

	st := first.Store()
	assert.Equal(t, "/site", st.Context().Jail)
	assert.Equal(t, "/site/pages", st.Context().Pwd)
	require.NoError(t, st.Write(ctx, "index.html", "<h1>hi</h1>", types.WriteOptions{Recursive: true}))

	second, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close()

	content, err := second.Store().Read(ctx, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", content)

	_, ok := second.Store().Backend().(*memfs.Engine)
	assert.True(t, ok)
}

func TestOpen_MemoryWithQuota(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("memory://quota-" + t.Name())
	cfg.Slots.QuotaBytes = 2048

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Store().Backend().(*blobfs.Adapter)
	require.True(t, ok)

	require.NoError(t, a.Store().Write(ctx, "small.txt", "ok", types.WriteOptions{}))

	err = a.Store().Write(ctx, "big.bin", string(make([]byte, 4096)), types.WriteOptions{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeQuotaExceeded), "got %v", err)
	require.NoError(t, a.Close())

	reopened, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	content, err := reopened.Store().Read(ctx, "small.txt")
	require.NoError(t, err)
	assert.Equal(t, "ok", content)

	exists, err := reopened.Store().Exists(ctx, "big.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpen_HostJail(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "site")
	cfg := testConfig("file://" + root)
	cfg.Store.Jail = "/public"

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	st := a.Store()
	assert.Equal(t, root+"/public", st.Context().Jail)
	require.NoError(t, st.Write(ctx, "/../../escape.txt", "contained", types.WriteOptions{}))

	data, err := os.ReadFile(filepath.Join(root, "public", "escape.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contained", string(data))

	_, ok := st.Backend().(*hostfs.Adapter)
	assert.True(t, ok)
}

func TestOpen_HostReadOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	cfg := testConfig("file://" + root)
	cfg.Store.ReadOnly = true

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	content, err := a.Store().Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", content)

	err = a.Store().Write(ctx, "b.txt", "b", types.WriteOptions{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeReadOnly), "got %v", err)
}

func TestOpen_ReadOnlyNeedsHost(t *testing.T) {
	cfg := testConfig("memory://ro")
	cfg.Store.ReadOnly = true

	_, err := Open(context.Background(), cfg, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig), "got %v", err)
}

func TestOpen_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("badger://site")
	cfg.Slots.Badger.Directory = t.TempDir()
	cfg.Slots.Compression.Enabled = true

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Store().WriteJSON(ctx, "conf/site.json", map[string]string{"title": "home"}))
	require.NoError(t, a.Close())

	reopened, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	var site map[string]string
	require.NoError(t, reopened.Store().ReadJSON(ctx, "conf/site.json", &site))
	assert.Equal(t, "home", site["title"])

	blob, ok := reopened.Store().Backend().(*blobfs.Adapter)
	require.True(t, ok)
	assert.Equal(t, "site", blob.Slot())
}

func TestOpen_BadgerDefaultSlot(t *testing.T) {
	cfg := testConfig("badger://")
	cfg.Slots.Badger.InMemory = true
	cfg.Slots.Slot = "fallback"

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	blob, ok := a.Store().Backend().(*blobfs.Adapter)
	require.True(t, ok)
	assert.Equal(t, "fallback", blob.Slot())
}

func TestOpen_Metrics(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig("memory://metrics-" + t.Name())
	cfg.Monitoring.Metrics.Enabled = true

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Collector())
	_, ok := a.Store().Backend().(*metrics.Instrumented)
	require.True(t, ok)

	require.NoError(t, a.Store().Write(ctx, "a.txt", "abc", types.WriteOptions{}))
	_, err = a.Store().Read(ctx, "missing.txt")
	require.Error(t, err)

	snapshot := a.Collector().GetMetrics()
	assert.Equal(t, int64(3), snapshot.Operations["write"].TotalBytes)
	assert.Equal(t, int64(1), snapshot.Operations["read"].Codes["PATH_NOT_FOUND"])
}

func TestOpen_InvalidConfig(t *testing.T) {
	t.Run("unsupported uri", func(t *testing.T) {
		_, err := Open(context.Background(), testConfig("ftp://host"), nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedURI), "got %v", err)
	})

	t.Run("relative jail", func(t *testing.T) {
		cfg := testConfig("memory://x")
		cfg.Store.Jail = "relative"
		_, err := Open(context.Background(), cfg, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig), "got %v", err)
	})
}

func TestClose_Idempotent(t *testing.T) {
	cfg := testConfig("badger://")
	cfg.Slots.Badger.InMemory = true

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
