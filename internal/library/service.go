package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vinylvision/backend/internal/catalog"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingRemote   = errors.New("remote store is required")
	noOpLogger         = zap.NewNop()

	// ErrRecordNotFound indicates the requested record is not in the collection.
	ErrRecordNotFound = errors.New("library: record not found")
)

const (
	opServiceNew   = "library.service.new"
	opLoad         = "library.load"
	opSaveRecord   = "library.save_record"
	opDeleteRecord = "library.delete_record"
	opRemoteSync   = "library.remote_sync"
)

// remoteSyncTimeout bounds background remote calls, which outlive the
// request that triggered them.
const remoteSyncTimeout = 30 * time.Second

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// DuplicateError reports a save that collided with an existing record.
type DuplicateError struct {
	Existing catalog.Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("library: duplicate of %q by %q (id %s)",
		e.Existing.Title, e.Existing.Artist, e.Existing.ID)
}

// RemoteStore is the remote half of the two-tier persistence. The adapter
// treats an unconfigured deployment as a transparent no-op.
type RemoteStore interface {
	FetchAll(ctx context.Context) ([]catalog.Record, bool, error)
	Upsert(ctx context.Context, record catalog.Record) error
	Delete(ctx context.Context, id string) error
}

type ServiceConfig struct {
	Database *gorm.DB
	Remote   RemoteStore
	Clock    func() time.Time
	Logger   *zap.Logger
	// Notify, when set, receives collection change events. The HTTP layer
	// uses it to feed the SSE stream.
	Notify func(ChangeEvent)
}

// Service holds the in-memory collection and reconciles it against the
// local snapshot and the remote store.
type Service struct {
	db     *gorm.DB
	remote RemoteStore
	clock  func() time.Time
	logger *zap.Logger
	notify func(ChangeEvent)

	mu      sync.RWMutex
	records []catalog.Record

	syncGroup sync.WaitGroup
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Remote == nil {
		return nil, newServiceError(opServiceNew, "missing_remote", errMissingRemote)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(ChangeEvent) {}
	}

	return &Service{
		db:     cfg.Database,
		remote: cfg.Remote,
		clock:  clock,
		logger: logger,
		notify: notify,
	}, nil
}

// Load reads the local snapshot synchronously, then refreshes from the
// remote store in the background. Remote data, when present, replaces the
// collection entirely; remote failures leave the local state standing.
func (s *Service) Load(ctx context.Context) error {
	records, err := s.readSnapshot(ctx)
	if err != nil {
		s.logError(opLoad, "snapshot_read_failed", err)
		return newServiceError(opLoad, "snapshot_read_failed", err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.syncGroup.Add(1)
	go func() {
		defer s.syncGroup.Done()
		s.overlayFromRemote()
	}()

	return nil
}

func (s *Service) overlayFromRemote() {
	ctx, cancel := context.WithTimeout(context.Background(), remoteSyncTimeout)
	defer cancel()

	records, available, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.logger.Warn("remote collection fetch failed",
			zap.String("operation", opRemoteSync), zap.Error(err))
		return
	}
	if !available {
		return
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	if err := s.writeSnapshot(ctx, records); err != nil {
		s.logError(opRemoteSync, "snapshot_write_failed", err)
	}
	s.logger.Info("collection replaced from remote store",
		zap.String("operation", opRemoteSync), zap.Int("records", len(records)))
	s.notify(ChangeEvent{Kind: ChangeReloaded})
}

// Save validates the record, enforces the duplicate policy against the rest
// of the collection, and persists locally before scheduling the remote
// upsert. It reports whether an existing record was replaced in place.
func (s *Service) Save(ctx context.Context, record catalog.Record) (bool, error) {
	if err := record.Validate(); err != nil {
		s.logError(opSaveRecord, "invalid_record", err)
		return false, newServiceError(opSaveRecord, "invalid_record", err)
	}

	s.mu.Lock()
	if existing := catalog.FindDuplicate(s.records, record); existing != nil {
		duplicate := *existing
		s.mu.Unlock()
		return false, &DuplicateError{Existing: duplicate}
	}

	previous := s.records
	replaced := false
	next := make([]catalog.Record, 0, len(previous)+1)
	for _, current := range previous {
		if current.ID == record.ID {
			next = append(next, record)
			replaced = true
			continue
		}
		next = append(next, current)
	}
	if !replaced {
		next = append([]catalog.Record{record}, next...)
	}
	s.records = next

	if err := s.writeSnapshot(ctx, next); err != nil {
		s.records = previous
		s.mu.Unlock()
		s.logError(opSaveRecord, "snapshot_write_failed", err, zap.String("record_id", record.ID))
		return false, newServiceError(opSaveRecord, "snapshot_write_failed", err)
	}
	s.mu.Unlock()

	s.syncGroup.Add(1)
	go func() {
		defer s.syncGroup.Done()
		syncCtx, cancel := context.WithTimeout(context.Background(), remoteSyncTimeout)
		defer cancel()
		if err := s.remote.Upsert(syncCtx, record); err != nil {
			s.logger.Warn("remote upsert failed",
				zap.String("operation", opRemoteSync),
				zap.String("record_id", record.ID), zap.Error(err))
		}
	}()

	s.notify(ChangeEvent{Kind: ChangeSaved, RecordID: record.ID})
	return replaced, nil
}

// Delete removes the record from memory and the local snapshot, then
// schedules the remote delete. The caller-facing confirmation gate lives at
// the HTTP surface.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	index := -1
	for position, current := range s.records {
		if current.ID == id {
			index = position
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	previous := s.records
	next := make([]catalog.Record, 0, len(previous)-1)
	next = append(next, previous[:index]...)
	next = append(next, previous[index+1:]...)
	s.records = next

	if err := s.writeSnapshot(ctx, next); err != nil {
		s.records = previous
		s.mu.Unlock()
		s.logError(opDeleteRecord, "snapshot_write_failed", err, zap.String("record_id", id))
		return newServiceError(opDeleteRecord, "snapshot_write_failed", err)
	}
	s.mu.Unlock()

	s.syncGroup.Add(1)
	go func() {
		defer s.syncGroup.Done()
		syncCtx, cancel := context.WithTimeout(context.Background(), remoteSyncTimeout)
		defer cancel()
		if err := s.remote.Delete(syncCtx, id); err != nil {
			s.logger.Warn("remote delete failed",
				zap.String("operation", opRemoteSync),
				zap.String("record_id", id), zap.Error(err))
		}
	}()

	s.notify(ChangeEvent{Kind: ChangeDeleted, RecordID: id})
	return nil
}

// Records returns a defensive copy of the collection, most recent first.
func (s *Service) Records() []catalog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]catalog.Record, len(s.records))
	copy(records, s.records)
	return records
}

// Flush waits for in-flight background remote syncs to finish. Used during
// shutdown so scheduled writes are not abandoned.
func (s *Service) Flush() {
	s.syncGroup.Wait()
}

func (s *Service) readSnapshot(ctx context.Context) ([]catalog.Record, error) {
	var row Snapshot
	err := s.db.WithContext(ctx).Take(&row, "key = ?", snapshotKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []catalog.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	var records []catalog.Record
	if err := json.Unmarshal([]byte(row.Payload), &records); err != nil {
		// A corrupt snapshot must not brick the collection; start empty and
		// let the remote overlay repopulate it.
		s.logger.Warn("local snapshot is not decodable, starting empty",
			zap.String("operation", opLoad), zap.Error(err))
		return []catalog.Record{}, nil
	}
	if records == nil {
		records = []catalog.Record{}
	}
	return records, nil
}

func (s *Service) writeSnapshot(ctx context.Context, records []catalog.Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	row := Snapshot{
		Key:             snapshotKey,
		Payload:         string(payload),
		UpdatedAtMillis: s.clock().UTC().UnixMilli(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("library service error", attrs...)
}
