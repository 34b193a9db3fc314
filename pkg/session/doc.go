/*
Package session owns every change hostsaccel makes to a hosts file.

A Session moves through four states:

	Idle ──ApplyTemporary──▶ Active ──Restore──▶ Restored
	  │                        │                    │
	  │                        └──ApplyPermanent──▶ Permanent
	  └──ApplyPermanent───────────────────────────▶ Permanent

Restored may go back to Active with another ApplyTemporary. Permanent is
terminal for temporary overrides.

# Backups

The first ApplyTemporary captures the raw bytes of the hosts file. Later
applies rewrite the managed block but keep that first backup, so a restore
always returns the file to its pre-session content, byte for byte, whatever
its encoding. The backup is released exactly once: by Restore, by
Lease.Release, by Guard on any exit of its function, or, when the write that
follows the capture fails, before ApplyTemporary returns its error.

When a journal (state.Store) is configured the backup is also persisted
before the hosts file is modified. A process killed with the override in
place leaves the journal entry behind, and RecoverPending in a later run
writes it back.

# Scoped use

	err := sess.Guard(ctx, func(ctx context.Context) error {
		if _, err := sess.ApplyTemporary(ctx, ranked); err != nil {
			return err
		}
		<-ctx.Done() // SIGINT/SIGTERM
		return nil
	})

Only one hostsaccel process may modify a given hosts file at a time. This
is not enforced with file locks.
*/
package session
