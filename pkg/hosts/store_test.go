package hosts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHosts(t *testing.T, data []byte) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return NewStore(path)
}

func TestStoreReadUTF8(t *testing.T) {
	store := writeHosts(t, []byte(baseHosts))

	doc, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, baseHosts, doc.Content)
	assert.Equal(t, EncodingUTF8, doc.Encoding)
}

func TestStoreReadLatin1Fallback(t *testing.T) {
	// 0xE9 is "é" in ISO-8859-1 and an invalid lone byte in UTF-8
	raw := []byte("127.0.0.1 caf\xe9.local\n")
	store := writeHosts(t, raw)

	doc, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, doc.Encoding)
	assert.Equal(t, "127.0.0.1 café.local\n", doc.Content)
	assert.Equal(t, raw, doc.Raw)
}

func TestStoreReadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))

	_, err := store.Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStoreWriteReplacesAtomically(t *testing.T) {
	store := writeHosts(t, []byte(baseHosts))
	require.NoError(t, os.Chmod(store.Path, 0640))

	require.NoError(t, store.Write("10.0.0.1 replaced\n", EncodingUTF8))

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1 replaced\n", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestStoreWriteKeepsLatin1(t *testing.T) {
	raw := []byte("127.0.0.1 localhost\n# caf\xe9\n")
	store := writeHosts(t, raw)

	doc, err := store.Read()
	require.NoError(t, err)
	require.NoError(t, store.Write(doc.Content+"10.0.0.1 added\n", doc.Encoding))

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n# caf\xe9\n10.0.0.1 added\n", string(data))
}

func TestDocumentEncode(t *testing.T) {
	utf := Document{Encoding: EncodingUTF8}
	data, err := utf.Encode("# café")
	require.NoError(t, err)
	assert.Equal(t, []byte("# caf\xc3\xa9"), data)

	latin1 := Document{Encoding: EncodingLatin1}
	data, err = latin1.Encode("# café")
	require.NoError(t, err)
	assert.Equal(t, []byte("# caf\xe9"), data)

	_, err = latin1.Encode("# 中文")
	assert.ErrorIs(t, err, ErrIO)
}

func TestStoreWriteRawPreservesBytes(t *testing.T) {
	store := writeHosts(t, []byte(baseHosts))
	raw := []byte("127.0.0.1 caf\xe9.local\r\n")

	require.NoError(t, store.WriteRaw(raw))

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestStoreWriteFailsWithoutDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope", "hosts"))

	err := store.Write("x", EncodingUTF8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
}

func TestStorePermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(path, []byte(baseHosts), 0444))
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

	store := NewStore(path)

	err := store.CheckWritable()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermission))

	err = store.Write("x", EncodingUTF8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermission))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, baseHosts, string(data))
}

func TestStoreCheckWritable(t *testing.T) {
	store := writeHosts(t, []byte(baseHosts))
	assert.NoError(t, store.CheckWritable())

	entries, err := os.ReadDir(filepath.Dir(store.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCommandFlusher(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses unix true/false")
	}

	ctx := context.Background()

	ok := &CommandFlusher{Candidates: [][]string{{"hostsaccel-no-such-binary"}, {"true"}}}
	assert.NoError(t, ok.Flush(ctx))

	failing := &CommandFlusher{Candidates: [][]string{{"false"}, {"hostsaccel-no-such-binary"}}}
	err := failing.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheFlush))

	empty := &CommandFlusher{}
	assert.True(t, errors.Is(empty.Flush(ctx), ErrCacheFlush))

	withFollowup := &CommandFlusher{
		Candidates: [][]string{{"true"}},
		Followups:  [][]string{{"false"}},
	}
	assert.NoError(t, withFollowup.Flush(ctx))
}
