package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/jailstore/pkg/errors"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func jailstore(t *testing.T, stdin string, args ...string) result {
	t.Helper()

	var stdout, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &errOut)
	return result{stdout: stdout.String(), stderr: errOut.String(), err: err}
}

func TestRun_MemoryRoundTrip(t *testing.T) {
	uri := "--uri=memory://cli-roundtrip"

	res := jailstore(t, "", uri, "-r", "write", "docs/readme.txt", "hello")
	require.NoError(t, res.err)

	res = jailstore(t, "from stdin", uri, "write", "docs/notes.txt")
	require.NoError(t, res.err)

	res = jailstore(t, "", uri, "cat", "docs/readme.txt", "docs/notes.txt")
	require.NoError(t, res.err)
	assert.Equal(t, "hellofrom stdin", res.stdout)

	res = jailstore(t, "", uri, "ls", "docs")
	require.NoError(t, res.err)
	assert.Equal(t, "notes.txt\nreadme.txt\n", res.stdout)

	res = jailstore(t, "", uri, "--pwd", "/docs", "ls", "--absolute")
	require.NoError(t, res.err)
	assert.Equal(t, "/docs/notes.txt\n/docs/readme.txt\n", res.stdout)

	res = jailstore(t, "", uri, "glob", "**/*.txt")
	require.NoError(t, res.err)
	assert.Equal(t, "docs/notes.txt\ndocs/readme.txt\n", res.stdout)

	res = jailstore(t, "", uri, "rm", "docs/notes.txt")
	require.NoError(t, res.err)

	res = jailstore(t, "", uri, "ls", "-r")
	require.NoError(t, res.err)
	assert.Equal(t, "docs\ndocs/readme.txt\n", res.stdout)
}

func TestRun_MkdirStatTouch(t *testing.T) {
	uri := "--uri=memory://cli-stat"

	require.NoError(t, jailstore(t, "", uri, "mkdir", "-r", "a/b").err)
	require.NoError(t, jailstore(t, "", uri, "touch", "a/b/c.txt").err)

	res := jailstore(t, "", uri, "stat", "a/b/c.txt")
	require.NoError(t, res.err)

	var stat map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &stat))
	assert.Equal(t, "/a/b/c.txt", stat["path"])
	assert.Equal(t, "f", stat["kind"])
	assert.Contains(t, stat, "mtime")

	res = jailstore(t, "", uri, "rmdir", "a/b")
	assert.True(t, errors.HasCode(res.err, errors.ErrCodeDirExists), "got %v", res.err)

	res = jailstore(t, "", uri, "rmdir", "-r", "a/b")
	require.NoError(t, res.err)
	res = jailstore(t, "", uri, "ls", "a")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
}

func TestRun_JailFlag(t *testing.T) {
	uri := "--uri=memory://cli-jail"

	require.NoError(t, jailstore(t, "", uri, "--jail", "/site", "write", "../../escape.txt", "x").err)

	res := jailstore(t, "", uri, "ls", "/site")
	require.NoError(t, res.err)
	assert.Equal(t, "escape.txt\n", res.stdout)
}

func TestRun_CopyBetweenStores(t *testing.T) {
	root := t.TempDir()
	uri := "--uri=memory://cli-cp"

	require.NoError(t, jailstore(t, "", uri, "-r", "write", "site/index.html", "<h1>home</h1>").err)
	require.NoError(t, jailstore(t, "", uri, "-r", "write", "site/css/main.css", "body{}").err)

	res := jailstore(t, "", uri, "--to", "file://"+root, "cp", "site", "public")
	require.NoError(t, res.err)

	data, err := os.ReadFile(filepath.Join(root, "public", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	res = jailstore(t, "", uri, "cp", "site/index.html", "backup/index.html")
	require.NoError(t, res.err)
	res = jailstore(t, "", uri, "cat", "backup/index.html")
	require.NoError(t, res.err)
	assert.Equal(t, "<h1>home</h1>", res.stdout)
}

func TestRun_BadgerWithQuotaFlag(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JAILSTORE_BADGER_DIR", dir)

	args := []string{"--uri=badger://cli", "--compress", "--quota", "1MB"}
	require.NoError(t, jailstore(t, "", append(args, "write", "a.txt", "persisted")...).err)

	res := jailstore(t, "", append(args, "cat", "a.txt")...)
	require.NoError(t, res.err)
	assert.Equal(t, "persisted", res.stdout)
}

func TestRun_ConfigFile(t *testing.T) {
	root := t.TempDir()
	configFile := filepath.Join(t.TempDir(), "jailstore.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("store:\n  uri: file://"+root+"\n  jail: /data\n"), 0o600))

	require.NoError(t, jailstore(t, "", "--config", configFile, "write", "x.txt", "from config").err)

	data, err := os.ReadFile(filepath.Join(root, "data", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "from config", string(data))
}

func TestRun_Errors(t *testing.T) {
	t.Run("no command", func(t *testing.T) {
		res := jailstore(t, "")
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, "usage: jailstore")
	})

	t.Run("unknown command", func(t *testing.T) {
		res := jailstore(t, "", "mv", "a", "b")
		assert.ErrorContains(t, res.err, `unknown command "mv"`)
	})

	t.Run("wrong arity", func(t *testing.T) {
		res := jailstore(t, "", "stat")
		assert.ErrorContains(t, res.err, "usage: jailstore stat")
	})

	t.Run("missing file", func(t *testing.T) {
		res := jailstore(t, "", "--uri=memory://cli-errors", "cat", "nope.txt")
		assert.True(t, errors.HasCode(res.err, errors.ErrCodePathNotFound), "got %v", res.err)
	})

	t.Run("unsupported uri", func(t *testing.T) {
		res := jailstore(t, "", "--uri=ftp://host", "ls")
		assert.True(t, errors.HasCode(res.err, errors.ErrCodeUnsupportedURI), "got %v", res.err)
	})

	t.Run("bad quota", func(t *testing.T) {
		res := jailstore(t, "", "--quota", "lots", "ls")
		assert.True(t, errors.HasCode(res.err, errors.ErrCodeInvalidConfig), "got %v", res.err)
	})

	t.Run("read only host", func(t *testing.T) {
		res := jailstore(t, "", "--uri=file://"+t.TempDir(), "--read-only", "touch", "a")
		assert.True(t, errors.HasCode(res.err, errors.ErrCodeReadOnly), "got %v", res.err)
	})
}
