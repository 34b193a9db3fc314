/*
Package hosts owns every read and write of the platform hosts file.

The file is treated as an untouched prefix plus at most one managed block:

	127.0.0.1       localhost
	::1             localhost

	# GitHubAccelerator Block
	140.82.112.4    github.com
	185.199.108.133 objects.githubusercontent.com
	# End Block

ExtractManagedBlock strips the block (every start/end pair, matched lazily)
and trims trailing whitespace; RenderBlock produces a block from a ranked
set; Compose puts the two back together. Writing a new block always goes
through ExtractManagedBlock first, so repeated applies never duplicate it.

# Atomic replacement

Store.Write never edits the file in place. Bytes are written to a temporary
file in the same directory, fsynced, given the target's permissions and
renamed over the target. Any failure before the rename removes the
temporary file and leaves the original untouched.

# Encodings

Many hosts files edited by hand on Windows are not valid UTF-8. Read falls
back to ISO-8859-1 when UTF-8 validation fails, and Write encodes back to
the same charset, so lines outside the managed block keep their bytes.
Document.Raw keeps the exact bytes so a backup can be restored byte for
byte.

# Errors

	ErrIO          read, decode or replace failed
	ErrPermission  the process may not replace the file (run as root/admin)
	ErrCacheFlush  no resolver cache flush command succeeded (non-fatal)

Only one hostsaccel process should modify a given hosts file at a time;
there is no file locking.
*/
package hosts
