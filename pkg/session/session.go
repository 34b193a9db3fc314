package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/hosts"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/state"
	"github.com/cuemby/hostsaccel/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidState is returned for an operation the current state forbids
	ErrInvalidState = errors.New("invalid session state")

	// ErrNothingToApply is returned when no domain has an address to write
	ErrNothingToApply = errors.New("no addresses to apply")
)

// State is the lifecycle position of a Session
type State string

const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateRestored  State = "restored"
	StatePermanent State = "permanent"
)

var allStates = []string{
	string(StateIdle),
	string(StateActive),
	string(StateRestored),
	string(StatePermanent),
}

// HostsFile is the hosts file access a Session needs
type HostsFile interface {
	Location() string
	Read() (hosts.Document, error)
	Write(content, encoding string) error
	WriteRaw(data []byte) error
}

// Config holds the collaborators of a Session
type Config struct {
	Hosts   HostsFile
	Flusher hosts.Flusher

	// Journal persists the pending backup so a later run can restore it if
	// this process is killed; nil disables it
	Journal state.Store

	// Events receives override.* events; may be nil
	Events *events.Broker
}

// Session owns every change hostsaccel makes to one hosts file, and the
// single backup needed to undo a temporary override. One Session per
// process; it is safe for concurrent use.
type Session struct {
	id      string
	hosts   HostsFile
	flusher hosts.Flusher
	journal state.Store
	events  *events.Broker
	logger  zerolog.Logger

	mu     sync.Mutex
	state  State
	backup *types.SessionBackup
}

// New creates an idle session
func New(cfg Config) *Session {
	flusher := cfg.Flusher
	if flusher == nil {
		flusher = hosts.NopFlusher{}
	}

	id := uuid.New().String()
	s := &Session{
		id:      id,
		hosts:   cfg.Hosts,
		flusher: flusher,
		journal: cfg.Journal,
		events:  cfg.Events,
		logger:  log.WithSessionID(id),
		state:   StateIdle,
	}
	metrics.SetSessionState(string(StateIdle), allStates)
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasBackup reports whether a restore is pending
func (s *Session) HasBackup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backup != nil
}

// GenerateManagedBlock renders set as the managed block text
func (s *Session) GenerateManagedBlock(set types.RankedIPSet) string {
	return hosts.RenderBlock(set)
}

// ApplyPermanent replaces the managed block with set and keeps it. A
// pending temporary backup is discarded: the caller chose to keep the
// override.
func (s *Session) ApplyPermanent(ctx context.Context, set types.RankedIPSet) error {
	if set.Empty() {
		return ErrNothingToApply
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.hosts.Read()
	if err != nil {
		return err
	}

	if err := s.write("apply", doc, hosts.Compose(doc.Prefix(), hosts.RenderBlock(set))); err != nil {
		return err
	}
	s.flush(ctx)

	if s.backup != nil {
		s.logger.Info().Msg("temporary override made permanent, discarding backup")
		s.clearJournal()
		s.backup = nil
	}
	s.setState(StatePermanent)

	s.logger.Info().
		Str("path", s.hosts.Location()).
		Int("domains", len(set)).
		Msg("permanent override applied")
	s.publish(events.EventOverrideApplied, "permanent override applied", map[string]string{"mode": "permanent"})
	return nil
}

// ApplyTemporary writes set and returns a Lease whose Release restores the
// content the file had before the first temporary apply. Only the first
// call captures a backup; later calls rewrite the block and keep it.
//
// If the write fails, a backup captured by this call is dropped before the
// error is returned, leaving the session as it was.
func (s *Session) ApplyTemporary(ctx context.Context, set types.RankedIPSet) (*Lease, error) {
	if set.Empty() {
		return nil, ErrNothingToApply
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePermanent {
		return nil, fmt.Errorf("%w: cannot apply a temporary override after a permanent one", ErrInvalidState)
	}

	doc, err := s.hosts.Read()
	if err != nil {
		return nil, err
	}

	captured := false
	previous := s.state
	if s.backup == nil {
		s.backup = &types.SessionBackup{
			SessionID:  s.id,
			HostsPath:  s.hosts.Location(),
			Content:    append([]byte(nil), doc.Raw...),
			CapturedAt: time.Now(),
		}
		captured = true
		s.saveJournal()
		s.setState(StateActive)
	}

	if err := s.write("apply", doc, hosts.Compose(doc.Prefix(), hosts.RenderBlock(set))); err != nil {
		if captured {
			// the atomic write left the file untouched
			s.clearJournal()
			s.backup = nil
			s.setState(previous)
		}
		return nil, err
	}
	s.flush(ctx)

	s.logger.Info().
		Str("path", s.hosts.Location()).
		Int("domains", len(set)).
		Bool("backup_captured", captured).
		Msg("temporary override applied")
	s.publish(events.EventOverrideApplied, "temporary override applied", map[string]string{"mode": "temporary"})

	return &Lease{session: s}, nil
}

// Restore writes the captured backup back byte for byte and clears it.
// Without a pending backup it does nothing; calling it twice is safe.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(ctx)
}

// Deactivate ends temporary mode early by restoring
func (s *Session) Deactivate(ctx context.Context) error {
	return s.Restore(ctx)
}

func (s *Session) restoreLocked(ctx context.Context) error {
	if s.state != StateActive || s.backup == nil {
		return nil
	}

	if err := s.writeRaw("restore", s.backup.Content); err != nil {
		// backup and journal stay so the restore can be retried
		return fmt.Errorf("failed to restore hosts file: %w", err)
	}
	s.flush(ctx)

	s.clearJournal()
	s.backup = nil
	s.setState(StateRestored)

	s.logger.Info().Str("path", s.hosts.Location()).Msg("hosts file restored")
	s.publish(events.EventOverrideRestored, "hosts file restored", nil)
	return nil
}

// RemoveOverrides strips the managed block for good. A pending temporary
// override is restored first, then any block left in the restored content
// is removed.
func (s *Session) RemoveOverrides(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.restoreLocked(ctx); err != nil {
		return err
	}

	doc, err := s.hosts.Read()
	if err != nil {
		return err
	}
	if _, ok := hosts.ManagedBlock(doc.Content); !ok {
		s.logger.Debug().Msg("no managed block to remove")
		return nil
	}

	prefix := doc.Prefix()
	content := ""
	if prefix != "" {
		content = prefix + "\n"
	}
	if err := s.write("remove", doc, content); err != nil {
		return err
	}
	s.flush(ctx)

	s.logger.Info().Str("path", s.hosts.Location()).Msg("managed block removed")
	s.publish(events.EventOverrideRemoved, "managed block removed", nil)
	return nil
}

// ReplaceDomain sets domain's addresses inside the managed block, keeping
// every other managed entry. Unmanaged lines for domain are dropped from
// the rest of the file so they cannot shadow the block.
func (s *Session) ReplaceDomain(ctx context.Context, domain string, addrs []string) error {
	if len(addrs) == 0 {
		return ErrNothingToApply
	}
	domain = strings.ToLower(domain)

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.hosts.Read()
	if err != nil {
		return err
	}

	set := types.RankedIPSet{}
	if block, ok := hosts.ManagedBlock(doc.Content); ok {
		set = hosts.ParseBlock(block)
	}
	set[domain] = append([]string(nil), addrs...)

	prefix := strings.TrimRight(hosts.RemoveDomainEntries(doc.Prefix(), domain), " \t\r\n")
	if err := s.write("replace", doc, hosts.Compose(prefix, hosts.RenderBlock(set))); err != nil {
		return err
	}
	s.flush(ctx)

	s.logger.Info().
		Str("domain", domain).
		Strs("addresses", addrs).
		Msg("domain entries replaced")
	return nil
}

// RecoverPending restores a backup journaled by an earlier process that
// never got to restore it. It reports whether anything was restored.
func (s *Session) RecoverPending(ctx context.Context) (bool, error) {
	if s.journal == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup, err := s.journal.LoadBackup(s.hosts.Location())
	if errors.Is(err, state.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session journal: %w", err)
	}
	if backup.SessionID == s.id {
		return false, nil
	}

	if err := s.writeRaw("restore", backup.Content); err != nil {
		return false, fmt.Errorf("failed to restore pending backup: %w", err)
	}
	s.flush(ctx)

	if err := s.journal.ClearBackup(backup.HostsPath); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear recovered backup")
	}

	s.logger.Warn().
		Str("previous_session", backup.SessionID).
		Time("captured_at", backup.CapturedAt).
		Msg("restored hosts file left modified by an interrupted run")
	s.publish(events.EventOverrideRestored, "recovered interrupted temporary override",
		map[string]string{"previous_session": backup.SessionID})
	return true, nil
}

// Guard runs fn and then restores, whether fn returns, panics or stops
// because ctx was cancelled. A panic is re-raised after the restore.
func (s *Session) Guard(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		r := recover()

		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if rerr := s.Restore(restoreCtx); rerr != nil {
			s.logger.Error().Err(rerr).Msg("restore after guarded run failed")
			err = errors.Join(err, rerr)
		}

		if r != nil {
			panic(r)
		}
	}()

	return fn(ctx)
}

func (s *Session) write(kind string, doc hosts.Document, content string) error {
	err := s.hosts.Write(content, doc.Encoding)
	recordWrite(kind, err)
	return err
}

func (s *Session) writeRaw(kind string, data []byte) error {
	err := s.hosts.WriteRaw(data)
	recordWrite(kind, err)
	return err
}

func recordWrite(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.HostsWritesTotal.WithLabelValues(kind, result).Inc()
}

// flush is best-effort; a failure is logged and counted
func (s *Session) flush(ctx context.Context) {
	if err := s.flusher.Flush(ctx); err != nil {
		metrics.CacheFlushFailures.Inc()
		s.logger.Warn().Err(err).Msg("resolver cache flush failed, changes apply once the cache expires")
	}
}

func (s *Session) saveJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveBackup(s.backup); err != nil {
		s.logger.Warn().Err(err).Msg("failed to journal backup, an interrupted run cannot be recovered")
	}
}

func (s *Session) clearJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.ClearBackup(s.hosts.Location()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear backup journal")
	}
}

func (s *Session) setState(st State) {
	s.state = st
	metrics.SetSessionState(string(st), allStates)
}

func (s *Session) publish(eventType events.EventType, message string, metadata map[string]string) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["session_id"] = s.id
	metadata["path"] = s.hosts.Location()
	s.events.Publish(events.NewEvent(eventType, message, metadata))
}
