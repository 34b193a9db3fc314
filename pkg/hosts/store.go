package hosts

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unicode/utf8"

	"github.com/cuemby/hostsaccel/pkg/log"
	"golang.org/x/text/encoding/charmap"
)

const (
	// EncodingUTF8 marks a document that was valid UTF-8 on disk
	EncodingUTF8 = "utf-8"

	// EncodingLatin1 marks a document decoded with the ISO-8859-1 fallback
	EncodingLatin1 = "iso-8859-1"
)

// DefaultPath returns the platform hosts file location
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// Document is one read of the hosts file
type Document struct {
	// Content is the decoded text
	Content string

	// Raw is the exact bytes that were on disk
	Raw []byte

	// Encoding is the encoding Content was decoded from
	Encoding string
}

// Prefix returns the content with the managed block removed
func (d Document) Prefix() string {
	return ExtractManagedBlock(d.Content)
}

// Store provides atomic access to a hosts file
type Store struct {
	Path string
}

// NewStore creates a store for the hosts file at path
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{Path: path}
}

// Location returns the path of the hosts file
func (s *Store) Location() string {
	return s.Path
}

// Read loads and decodes the hosts file. Content that is not valid UTF-8 is
// decoded as ISO-8859-1, which accepts every byte sequence.
func (s *Store) Read() (Document, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Document{}, s.wrap("read", err)
	}

	if utf8.Valid(raw) {
		return Document{Content: string(raw), Raw: raw, Encoding: EncodingUTF8}, nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: decode %s: %v", ErrIO, s.Path, err)
	}

	logger := log.WithComponent("hosts")

	logger.Debug().
		Str("path", s.Path).
		Msg("hosts file is not valid utf-8, decoded as iso-8859-1")

	return Document{Content: string(decoded), Raw: raw, Encoding: EncodingLatin1}, nil
}

// Encode converts content back to the encoding the document was read in,
// so lines outside the managed block keep their original bytes
func (d Document) Encode(content string) ([]byte, error) {
	if d.Encoding != EncodingLatin1 {
		return []byte(content), nil
	}
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	if err != nil {
		return nil, fmt.Errorf("%w: encode as %s: %v", ErrIO, d.Encoding, err)
	}
	return []byte(encoded), nil
}

// Write atomically replaces the hosts file with content in encoding, one of
// EncodingUTF8 or EncodingLatin1
func (s *Store) Write(content, encoding string) error {
	data, err := Document{Encoding: encoding}.Encode(content)
	if err != nil {
		return err
	}
	return s.WriteRaw(data)
}

// WriteRaw atomically replaces the hosts file with data
func (s *Store) WriteRaw(data []byte) error {
	if err := WriteFileAtomic(s.Path, data); err != nil {
		return err
	}

	logger := log.WithComponent("hosts")
	logger.Debug().
		Str("path", s.Path).
		Int("bytes", len(data)).
		Msg("hosts file replaced")

	return nil
}

// CheckWritable verifies, without modifying anything, that the process may
// replace the hosts file. It is run before any mutation so that missing
// privilege is reported up front.
func (s *Store) CheckWritable() error {
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return s.wrap("open for writing", err)
	}
	_ = f.Close()

	probe, err := os.CreateTemp(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".probe-*")
	if err != nil {
		return s.wrap("create temp file", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return nil
}

func (s *Store) wrap(op string, err error) error {
	return wrapPathError(op, s.Path, err)
}
