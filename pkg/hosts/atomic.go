package hosts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic replaces the file at path with data. The bytes go to a
// temporary file in the same directory which is fsynced and renamed over the
// target, so a crash leaves either the old or the new file, never a mix. The
// target's permissions are kept (0644 for a new file). Errors wrap ErrIO or
// ErrPermission.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	perm := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return wrapPathError("create temp file", path, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return wrapPathError("write temp file", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return wrapPathError("sync temp file", path, err)
	}
	if err := tmp.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return wrapPathError("chmod temp file", path, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapPathError("close temp file", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return wrapPathError("replace", path, err)
	}
	committed = true

	// fsync dir, best-effort
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func wrapPathError(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s %s: %w", ErrPermission, op, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
