package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"edlstream/internal/logging"
	"edlstream/internal/segmenter"
	"edlstream/internal/services"
)

// Status is the lifecycle state of one unified build.
type Status string

const (
	StatusMissing  Status = "missing"
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// StatusFileName is the per-build status record, written last.
const StatusFileName = "status.json"

const leaseRetryInterval = 500 * time.Millisecond

// Record is the persisted status of one unified build.
type Record struct {
	Status  Status `json:"status"`
	EDLHash string `json:"edl_hash"`
	Error   string `json:"error,omitempty"`
}

// Store manages unified build directories under a single root.
type Store struct {
	root         string
	leaseTimeout time.Duration
	logger       *slog.Logger
}

// NewStore constructs a store rooted at root. A nil logger disables logging.
func NewStore(root string, leaseTimeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		root:         root,
		leaseTimeout: leaseTimeout,
		logger:       logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the artifact directory for hash.
func (s *Store) Dir(hash string) string {
	return filepath.Join(s.root, hash)
}

// ManifestPath returns the unified manifest path for hash.
func (s *Store) ManifestPath(hash string) string {
	return filepath.Join(s.Dir(hash), segmenter.ManifestName)
}

// EnsureDir creates the artifact directory for hash and returns it.
func (s *Store) EnsureDir(hash string) (string, error) {
	dir := s.Dir(hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "artifacts", "ensure", "create artifact directory", err)
	}
	return dir, nil
}

// Status reads the persisted record for hash. A missing directory or record
// reports StatusMissing. A record claiming ready whose artifacts fail
// verification also reports StatusMissing so the build can be redone
// instead of serving a broken asset.
func (s *Store) Status(hash string) (Record, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(hash), StatusFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{Status: StatusMissing, EDLHash: hash}, nil
		}
		return Record{}, services.Wrap(services.ErrTransient, "artifacts", "status", "read status record", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("discarding corrupt status record",
			logging.String(logging.FieldEDLHash, hash),
			logging.Error(err))
		return Record{Status: StatusMissing, EDLHash: hash}, nil
	}

	if record.Status == StatusReady {
		if err := segmenter.VerifyArtifacts(s.Dir(hash)); err != nil {
			s.logger.Warn("ready record failed artifact verification",
				logging.String(logging.FieldEDLHash, hash),
				logging.Error(err))
			return Record{Status: StatusMissing, EDLHash: hash}, nil
		}
	}
	return record, nil
}

// MarkBuilding persists a building record before any transcoder work starts.
func (s *Store) MarkBuilding(hash string) error {
	if _, err := s.EnsureDir(hash); err != nil {
		return err
	}
	return s.writeRecord(hash, Record{Status: StatusBuilding, EDLHash: hash})
}

// MarkReady verifies the artifacts on disk and then persists the terminal
// ready record. It refuses to mark an unverified directory ready.
func (s *Store) MarkReady(hash string) error {
	if err := segmenter.VerifyArtifacts(s.Dir(hash)); err != nil {
		return err
	}
	return s.writeRecord(hash, Record{Status: StatusReady, EDLHash: hash})
}

// MarkFailed persists the terminal failed record with a diagnostic.
// Partial artifacts in the directory are left in place.
func (s *Store) MarkFailed(hash string, diagnostic string) error {
	if _, err := s.EnsureDir(hash); err != nil {
		return err
	}
	return s.writeRecord(hash, Record{Status: StatusFailed, EDLHash: hash, Error: diagnostic})
}

// writeRecord writes the status record atomically: temp file then rename,
// so a reader never observes a half-written record.
func (s *Store) writeRecord(hash string, record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrTransient, "artifacts", "persist", "encode status record", err)
	}

	dir := s.Dir(hash)
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "artifacts", "persist", "create status temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "artifacts", "persist", "write status record", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "artifacts", "persist", "close status temp file", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, StatusFileName)); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "artifacts", "persist", "rename status record", err)
	}
	return nil
}

// Lease is an advisory per-hash build lock. It is released automatically if
// the holding process dies.
type Lease struct {
	lock *flock.Flock
}

// Release drops the lease. Safe to call on a nil lease.
func (l *Lease) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

func (s *Store) leasePath(hash string) string {
	return filepath.Join(s.root, hash+".lock")
}

// TryLease attempts to acquire the build lease for hash without blocking.
// The boolean reports whether the lease was acquired.
func (s *Store) TryLease(hash string) (*Lease, bool, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "artifacts", "lease", "create store root", err)
	}
	lock := flock.New(s.leasePath(hash))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "artifacts", "lease", "acquire build lease", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return &Lease{lock: lock}, true, nil
}

// Lease blocks until the build lease for hash is acquired, the store's
// lease timeout elapses, or ctx is done.
func (s *Store) Lease(ctx context.Context, hash string) (*Lease, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "artifacts", "lease", "create store root", err)
	}

	waitCtx := ctx
	if s.leaseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.leaseTimeout)
		defer cancel()
	}

	lock := flock.New(s.leasePath(hash))
	acquired, err := lock.TryLockContext(waitCtx, leaseRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "artifacts", "lease",
				fmt.Sprintf("build lease not acquired within %s", s.leaseTimeout), nil)
		}
		return nil, services.Wrap(services.ErrTransient, "artifacts", "lease", "acquire build lease", err)
	}
	if !acquired {
		return nil, services.Wrap(services.ErrTransient, "artifacts", "lease", "build lease unavailable", nil)
	}
	return &Lease{lock: lock}, nil
}
