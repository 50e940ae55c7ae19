package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultPath is the log file used when none is configured.
const DefaultPath = "transactions.csv"

var (
	// ErrSourceNotFound is returned when a requested source file does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrConflict is returned by Save when the file changed after the log was loaded.
	ErrConflict = errors.New("transaction log changed on disk since it was loaded")
	// ErrMalformed is returned when a file exists but is not a readable CSV log.
	ErrMalformed = errors.New("malformed transaction log")
)

// Source is an external log, such as an uploaded file, that replaces the default one.
type Source struct {
	// Name identifies the source in notices and logs.
	Name string
	open func() (io.ReadCloser, error)
}

// FileSource returns a Source backed by a file path.
func FileSource(path string) *Source {
	return &Source{
		Name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// ReaderSource returns a Source backed by an already open reader.
func ReaderSource(name string, r io.Reader) *Source {
	return &Source{
		Name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// Store owns a single CSV file holding the transaction log.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a store for the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultPath
	}

	return &Store{
		path:   path,
		logger: logger,
	}
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store's file. A missing file yields the empty log and no error.
// A file that cannot be parsed yields the empty log and a non-nil error describing
// why; the returned log is never nil.
func (s *Store) Load(ctx context.Context) (*Log, error) {
	if err := ctx.Err(); err != nil {
		return Empty(), err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		l := Empty()
		l.origin = s.path
		s.logger.Debug("transaction log not found, starting empty", "file", s.path)
		return l, nil
	}
	if err != nil {
		return Empty(), fmt.Errorf("reading %s: %w", s.path, err)
	}

	l, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("could not parse transaction log, starting empty", "file", s.path, "error", err)
		return Empty(), fmt.Errorf("%w: %s: %w", ErrMalformed, s.path, err)
	}

	l.origin = s.path
	l.version = versionOf(data)
	return l, nil
}

// LoadSource reads an external source, or the store's own file when src is nil.
// Failures fall back to the empty log together with a non-nil error meant to be
// shown as a notice; the returned log is never nil.
func (s *Store) LoadSource(ctx context.Context, src *Source) (*Log, error) {
	if src == nil {
		return s.Load(ctx)
	}
	if err := ctx.Err(); err != nil {
		return Empty(), err
	}

	rc, err := src.open()
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), fmt.Errorf("%w: %s", ErrSourceNotFound, src.Name)
	}
	if err != nil {
		return Empty(), fmt.Errorf("opening %s: %w", src.Name, err)
	}
	defer rc.Close()

	l, err := ReadCSV(rc)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %s: %w", ErrMalformed, src.Name, err)
	}

	s.logger.Info("loaded transaction log", "source", src.Name, "rows", l.Len(), "columns", strings.Join(l.Columns, ","))
	return l, nil
}

// Save rewrites the whole file with l. When l was loaded from this store and the
// file has changed since, Save returns ErrConflict and writes nothing. On success
// l is bound to the store at the version just written.
func (s *Store) Save(ctx context.Context, l *Log) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.origin == s.path {
		current, err := s.currentVersion()
		if err != nil {
			return err
		}
		if current != l.version {
			return ErrConflict
		}
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, l); err != nil {
		return fmt.Errorf("encoding transaction log: %w", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}

	l.origin = s.path
	l.version = versionOf(buf.Bytes())

	s.logger.Debug("saved transaction log", "file", s.path, "rows", l.Len())
	return nil
}

// currentVersion returns the version of the file on disk, or "" when it is absent.
func (s *Store) currentVersion() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", s.path, err)
	}
	return versionOf(data), nil
}

func versionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
