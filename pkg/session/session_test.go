package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/state"
	"github.com/cuemby/hostsaccel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const original = "127.0.0.1 localhost\n::1 localhost\n# caf\xe9 printer\n192.168.1.10 nas.local\n"

var ranked = types.RankedIPSet{
	"github.com":            {"140.82.112.4", "140.82.113.4"},
	"assets-cdn.github.com": {"185.199.108.153"},
}

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) Flush(context.Context) error {
	f.calls.Add(1)
	return f.err
}

// flakyHosts fails Write and WriteRaw on demand
type flakyHosts struct {
	*hosts.Store
	failWrite    bool
	failWriteRaw bool
}

func (f *flakyHosts) Write(content, encoding string) error {
	if f.failWrite {
		return fmt.Errorf("%w: disk full", hosts.ErrIO)
	}
	return f.Store.Write(content, encoding)
}

func (f *flakyHosts) WriteRaw(data []byte) error {
	if f.failWriteRaw {
		return fmt.Errorf("%w: disk full", hosts.ErrIO)
	}
	return f.Store.WriteRaw(data)
}

func hostsFile(t *testing.T, content string) *hosts.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return hosts.NewStore(path)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newJournal(t *testing.T) *state.BoltStore {
	t.Helper()
	journal, err := state.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestApplyTemporaryRestoresByteForByte(t *testing.T) {
	store := hostsFile(t, original)
	flusher := &countingFlusher{}
	s := New(Config{Hosts: store, Flusher: flusher})

	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())

	modified := readFile(t, store.Path)
	assert.Contains(t, modified, hosts.StartMarker)
	assert.Contains(t, modified, "140.82.112.4    github.com")

	require.NoError(t, lease.Release(context.Background()))
	assert.Equal(t, original, readFile(t, store.Path))
	assert.Equal(t, StateRestored, s.State())
	assert.False(t, s.HasBackup())
	assert.Equal(t, int32(2), flusher.calls.Load())
}

func TestRestoreIsIdempotent(t *testing.T) {
	store := hostsFile(t, original)
	flusher := &countingFlusher{}
	s := New(Config{Hosts: store, Flusher: flusher})

	// restore without a backup
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, flusher.calls.Load())

	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)

	require.NoError(t, s.Restore(context.Background()))
	require.NoError(t, s.Restore(context.Background()))
	require.NoError(t, lease.Release(context.Background()))
	require.NoError(t, s.Deactivate(context.Background()))

	assert.Equal(t, original, readFile(t, store.Path))
	assert.Equal(t, int32(2), flusher.calls.Load(), "only one apply and one restore flush")
}

func TestFirstBackupWins(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	_, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	_, err = s.ApplyTemporary(context.Background(), types.RankedIPSet{"github.com": {"20.205.243.166"}})
	require.NoError(t, err)

	content := readFile(t, store.Path)
	assert.Equal(t, 1, strings.Count(content, hosts.StartMarker))
	assert.Contains(t, content, "20.205.243.166")
	assert.NotContains(t, content, "140.82.112.4")

	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestApplyPermanent(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	require.NoError(t, s.ApplyPermanent(context.Background(), ranked))
	require.NoError(t, s.ApplyPermanent(context.Background(), ranked))

	content := readFile(t, store.Path)
	assert.Equal(t, StatePermanent, s.State())
	assert.Equal(t, 1, strings.Count(content, hosts.StartMarker))
	assert.False(t, s.HasBackup())

	// nothing to restore
	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, content, readFile(t, store.Path))

	_, err := s.ApplyTemporary(context.Background(), ranked)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOverridesKeepLatin1Bytes(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})
	ctx := context.Background()

	require.NoError(t, s.ApplyPermanent(ctx, ranked))
	content := readFile(t, store.Path)
	assert.Contains(t, content, "# caf\xe9 printer\n")
	assert.NotContains(t, content, "caf\xc3\xa9")

	require.NoError(t, s.ReplaceDomain(ctx, "objects.githubusercontent.com", []string{"185.199.108.133"}))
	assert.Contains(t, readFile(t, store.Path), "# caf\xe9 printer\n")

	require.NoError(t, s.RemoveOverrides(ctx))
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestApplyPermanentDiscardsPendingBackup(t *testing.T) {
	store := hostsFile(t, original)
	journal := newJournal(t)
	s := New(Config{Hosts: store, Journal: journal})

	_, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NoError(t, s.ApplyPermanent(context.Background(), ranked))

	assert.False(t, s.HasBackup())
	_, err = journal.LoadBackup(store.Path)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestApplyEmptySet(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	_, err := s.ApplyTemporary(context.Background(), types.RankedIPSet{"github.com": {}})
	assert.ErrorIs(t, err, ErrNothingToApply)
	assert.ErrorIs(t, s.ApplyPermanent(context.Background(), types.RankedIPSet{}), ErrNothingToApply)

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestApplyTemporaryWriteFailureReleasesBackup(t *testing.T) {
	flaky := &flakyHosts{Store: hostsFile(t, original), failWrite: true}
	journal := newJournal(t)
	s := New(Config{Hosts: flaky, Journal: journal})

	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.Error(t, err)
	assert.ErrorIs(t, err, hosts.ErrIO)
	assert.Nil(t, lease)

	assert.False(t, s.HasBackup())
	assert.Equal(t, StateIdle, s.State())
	_, err = journal.LoadBackup(flaky.Path)
	assert.ErrorIs(t, err, state.ErrNotFound)
	assert.Equal(t, original, readFile(t, flaky.Path))

	// the session is usable again once writes succeed
	flaky.failWrite = false
	lease, err = s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
	assert.Equal(t, original, readFile(t, flaky.Path))
}

func TestRestoreFailureKeepsBackup(t *testing.T) {
	flaky := &flakyHosts{Store: hostsFile(t, original)}
	s := New(Config{Hosts: flaky})

	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)

	flaky.failWriteRaw = true
	require.Error(t, lease.Release(context.Background()))
	assert.True(t, s.HasBackup())
	assert.Equal(t, StateActive, s.State())

	flaky.failWriteRaw = false
	require.NoError(t, lease.Release(context.Background()))
	assert.Equal(t, original, readFile(t, flaky.Path))
}

func TestJournalLifecycle(t *testing.T) {
	store := hostsFile(t, original)
	journal := newJournal(t)
	s := New(Config{Hosts: store, Journal: journal})

	_, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)

	backup, err := journal.LoadBackup(store.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte(original), backup.Content)
	assert.Equal(t, s.ID(), backup.SessionID)

	require.NoError(t, s.Restore(context.Background()))
	_, err = journal.LoadBackup(store.Path)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestRecoverPending(t *testing.T) {
	store := hostsFile(t, original)
	journal := newJournal(t)

	crashed := New(Config{Hosts: store, Journal: journal})
	_, err := crashed.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NotEqual(t, original, readFile(t, store.Path))

	// the crashed session cannot recover its own backup
	recovered, err := crashed.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)

	next := New(Config{Hosts: store, Journal: journal})
	recovered, err = next.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, original, readFile(t, store.Path))

	recovered, err = next.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)
}

func TestRecoverPendingWithoutJournal(t *testing.T) {
	s := New(Config{Hosts: hostsFile(t, original)})

	recovered, err := s.RecoverPending(context.Background())
	require.NoError(t, err)
	assert.False(t, recovered)
}

func TestGuardRestoresOnReturn(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	fnErr := errors.New("benchmark failed")
	err := s.Guard(context.Background(), func(ctx context.Context) error {
		_, err := s.ApplyTemporary(ctx, ranked)
		require.NoError(t, err)
		return fnErr
	})

	assert.ErrorIs(t, err, fnErr)
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestGuardRestoresOnPanic(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.Guard(context.Background(), func(ctx context.Context) error {
			_, err := s.ApplyTemporary(ctx, ranked)
			require.NoError(t, err)
			panic("boom")
		})
	})

	assert.Equal(t, original, readFile(t, store.Path))
	assert.Equal(t, StateRestored, s.State())
}

func TestGuardRestoresOnCancel(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	ctx, cancel := context.WithCancel(context.Background())
	applied := make(chan struct{})
	go func() {
		<-applied
		cancel()
	}()

	err := s.Guard(ctx, func(ctx context.Context) error {
		if _, err := s.ApplyTemporary(ctx, ranked); err != nil {
			return err
		}
		close(applied)
		<-ctx.Done()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestRemoveOverrides(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})
	require.NoError(t, s.ApplyPermanent(context.Background(), ranked))

	require.NoError(t, s.RemoveOverrides(context.Background()))

	content := readFile(t, store.Path)
	assert.NotContains(t, content, hosts.StartMarker)
	assert.Contains(t, content, "nas.local")

	// nothing left to remove
	require.NoError(t, s.RemoveOverrides(context.Background()))
}

func TestRemoveOverridesRestoresActiveSession(t *testing.T) {
	withBlock := hosts.Compose(strings.TrimRight(original, "\n"), hosts.RenderBlock(types.RankedIPSet{"github.com": {"1.1.1.1"}}))
	store := hostsFile(t, withBlock)
	s := New(Config{Hosts: store})

	_, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NoError(t, s.RemoveOverrides(context.Background()))

	content := readFile(t, store.Path)
	assert.Equal(t, StateRestored, s.State())
	assert.NotContains(t, content, hosts.StartMarker)
	assert.NotContains(t, content, "1.1.1.1")
}

func TestReplaceDomain(t *testing.T) {
	prefix := "127.0.0.1 localhost\n185.199.108.133 objects.githubusercontent.com\n# 185.199.108.133 objects.githubusercontent.com"
	store := hostsFile(t, hosts.Compose(prefix, hosts.RenderBlock(types.RankedIPSet{
		"github.com":                    {"140.82.112.4"},
		"objects.githubusercontent.com": {"1.2.3.4"},
	})))
	s := New(Config{Hosts: store})

	err := s.ReplaceDomain(context.Background(), "objects.githubusercontent.com", []string{"185.199.110.133", "185.199.111.133"})
	require.NoError(t, err)

	content := readFile(t, store.Path)
	block, ok := hosts.ManagedBlock(content)
	require.True(t, ok)

	assert.Equal(t, types.RankedIPSet{
		"github.com":                    {"140.82.112.4"},
		"objects.githubusercontent.com": {"185.199.110.133", "185.199.111.133"},
	}, hosts.ParseBlock(block))

	remaining := hosts.ExtractManagedBlock(content)
	assert.Equal(t, "127.0.0.1 localhost\n# 185.199.108.133 objects.githubusercontent.com", remaining)
	assert.Equal(t, 1, strings.Count(content, hosts.StartMarker))
}

func TestReplaceDomainWithoutBlock(t *testing.T) {
	store := hostsFile(t, original)
	s := New(Config{Hosts: store})

	require.NoError(t, s.ReplaceDomain(context.Background(), "objects.githubusercontent.com", []string{"185.199.110.133"}))

	block, ok := hosts.ManagedBlock(readFile(t, store.Path))
	require.True(t, ok)
	assert.Equal(t, types.RankedIPSet{"objects.githubusercontent.com": {"185.199.110.133"}}, hosts.ParseBlock(block))

	assert.ErrorIs(t, s.ReplaceDomain(context.Background(), "github.com", nil), ErrNothingToApply)
}

func TestGenerateManagedBlockRoundTrip(t *testing.T) {
	s := New(Config{Hosts: hostsFile(t, original)})
	set := types.RankedIPSet{
		"github.com":            {"140.82.112.4", "140.82.113.4", "20.205.243.166"},
		"assets-cdn.github.com": {"185.199.108.153", "185.199.109.153", "185.199.110.153"},
	}

	block := s.GenerateManagedBlock(set)
	prefix := strings.TrimRight(original, "\n")
	content := hosts.Compose(prefix, block)

	assert.Equal(t, prefix, hosts.ExtractManagedBlock(content))
	extracted, ok := hosts.ManagedBlock(content)
	require.True(t, ok)
	assert.Equal(t, block, extracted)
	assert.Equal(t, set, hosts.ParseBlock(extracted))
}

func TestFlushFailureIsNotFatal(t *testing.T) {
	store := hostsFile(t, original)
	flusher := &countingFlusher{err: fmt.Errorf("%w: resolvectl not found", hosts.ErrCacheFlush)}
	s := New(Config{Hosts: store, Flusher: flusher})

	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
	assert.Equal(t, original, readFile(t, store.Path))
}

func TestSessionPublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	s := New(Config{Hosts: hostsFile(t, original), Events: broker})
	lease, err := s.ApplyTemporary(context.Background(), ranked)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))

	var got []events.EventType
	for len(got) < 2 {
		select {
		case event := <-sub:
			assert.Equal(t, s.ID(), event.Metadata["session_id"])
			got = append(got, event.Type)
		case <-time.After(time.Second):
			t.Fatalf("received only %v", got)
		}
	}
	assert.Equal(t, []events.EventType{events.EventOverrideApplied, events.EventOverrideRestored}, got)
}
