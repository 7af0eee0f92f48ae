package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"docsmap/pkg/log"
	"docsmap/pkg/models"
	"docsmap/pkg/utils"
)

const (
	pageKeyPrefix = "page:"
	visitedDBDir  = "visited_db"

	maxConflictRetries = 10
)

// BadgerStore is the badger-backed VisitedStore. One store instance tracks
// one site's crawl state; the DB directory is derived from the site domain.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context
	keyCount atomic.Int64 // Maintained on writes so GetVisitedCount is O(1)
}

// NewBadgerStore opens (or recreates) the visited-URL database for a site.
// When resume is false any existing state for the site is wiped first.
func NewBadgerStore(ctx context.Context, stateDir, siteDomain string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteDomain)+"_"+visitedDBDir)

	if !resume {
		logger.Warnf("Fresh run requested, removing existing state at %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Could not remove state directory %s: %v", dbPath, err)
		}
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory %s: %w", dbPath, err)
	}

	logger.Infof("Opening visited URL database at %s (resume=%v)", dbPath, resume)
	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", dbPath, err)
	}

	store := &BadgerStore{db: db, log: logger, ctx: ctx}
	if resume {
		if count, countErr := store.countKeys(); countErr != nil {
			logger.Warnf("Could not count existing keys on resume: %v", countErr)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Resuming with %d keys already in the database.", count)
		}
	}
	return store, nil
}

// countKeys scans all keys once. Only used at open time on resume; every
// later read goes through the cached counter.
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// dbUpdate runs a write transaction, retrying on badger.ErrConflict.
// Conflicts between overlapping MVCC transactions resolve in microseconds,
// so the retry loop is tight and bounded.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for attempt := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("Badger transaction conflict (attempt %d/%d), retrying", attempt+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkPageVisited claims a normalized URL. The first caller for a given URL
// gets true; later callers get false. A claim writes the key with an empty
// value, which reads back as pending until a status is recorded.
func (s *BadgerStore) MarkPageVisited(normalizedPageURL string) (bool, error) {
	if s.db == nil {
		return false, errors.New("visited DB not initialized")
	}
	key := []byte(pageKeyPrefix + normalizedPageURL)

	claimed := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			if setErr := txn.SetEntry(badger.NewEntry(key, []byte{})); setErr != nil {
				return setErr
			}
			claimed = true
			return nil
		}
		return getErr
	})
	if err != nil {
		return false, fmt.Errorf("%w: claiming page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if claimed {
		s.keyCount.Add(1)
	}
	return claimed, nil
}

// CheckPageStatus reads the stored state for a URL. A missing key reports
// PageStatusNotFound without error; an empty or undecodable value reports
// pending so the page gets reprocessed rather than dropped.
func (s *BadgerStore) CheckPageStatus(normalizedPageURL string) (models.PageStatus, *models.PageDBEntry, error) {
	key := []byte(pageKeyPrefix + normalizedPageURL)
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry

	viewErr := s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key)
		if errors.Is(getErr, badger.ErrKeyNotFound) {
			return nil
		}
		if getErr != nil {
			return fmt.Errorf("%w: reading page key '%s': %w", utils.ErrDatabase, string(key), getErr)
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				status = models.PageStatusPending
				return nil
			}
			var decoded models.PageDBEntry
			if jsonErr := json.Unmarshal(val, &decoded); jsonErr != nil {
				s.log.Warnf("Undecodable entry for key '%s' (%v), treating as pending.", string(key), jsonErr)
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if viewErr != nil {
		s.log.Errorf("DB view failed in CheckPageStatus for '%s': %v", string(key), viewErr)
		return models.PageStatusDBError, nil, viewErr
	}
	return status, entry, nil
}

// UpdatePageStatus stores the final state of a page attempt, overwriting any
// earlier entry for the URL.
func (s *BadgerStore) UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error {
	if s.db == nil {
		return errors.New("visited DB not initialized")
	}
	key := []byte(pageKeyPrefix + normalizedPageURL)

	payload, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return fmt.Errorf("marshalling entry for key '%s': %w", string(key), jsonErr)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(key); errors.Is(getErr, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, payload))
	})
	if err != nil {
		return fmt.Errorf("%w: storing status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	s.log.Debugf("Page '%s' recorded as %s.", string(key), entry.Status)
	return nil
}

// GetVisitedCount returns the cached key count.
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC triggers badger value log garbage collection on an interval until
// the context is cancelled. Intended to run in its own goroutine.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Info("Badger GC loop started.")

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("Badger GC loop stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			// RunValueLogGC rewrites at most one log file per call; keep
			// calling until there is nothing left to reclaim.
			var gcErr error
			for gcErr == nil {
				gcErr = s.db.RunValueLogGC(0.5)
			}
			if errors.Is(gcErr, badger.ErrNoRewrite) {
				s.log.Debug("Badger GC cycle finished (no rewrite needed).")
			} else {
				s.log.Errorf("Badger GC error: %v", gcErr)
			}
		}
	}
}

// RequeueIncomplete scans the database and sends every pending or failed URL
// to workChan with its stored depth. Called once at the start of a resume
// run, before workers consume the frontier.
func (s *BadgerStore) RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (int, int, error) {
	s.log.Info("Resume: scanning database for incomplete pages...")
	requeued, scanErrors := 0, 0
	start := time.Now()

	scanErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			pageURL := string(item.KeyCopy(nil)[len(prefix):])

			valErr := item.Value(func(val []byte) error {
				depth := 0
				requeueIt := false

				if len(val) == 0 {
					// Claimed but never finished
					requeueIt = true
				} else {
					var entry models.PageDBEntry
					if jsonErr := json.Unmarshal(val, &entry); jsonErr != nil {
						s.log.Errorf("Resume: undecodable entry for '%s': %v. Skipping.", pageURL, jsonErr)
						scanErrors++
						return nil
					}
					if entry.Status == models.PageStatusPending || entry.Status == models.PageStatusFailure {
						requeueIt = true
						depth = entry.Depth
					}
				}
				if !requeueIt {
					return nil
				}

				select {
				case workChan <- models.WorkItem{URL: pageURL, Depth: depth}:
					requeued++
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if valErr != nil {
				if errors.Is(valErr, context.Canceled) || errors.Is(valErr, context.DeadlineExceeded) {
					return valErr
				}
				s.log.Errorf("Resume: value read failed for '%s': %v", pageURL, valErr)
				scanErrors++
			}
		}
		return nil
	})

	s.log.Infof("Resume scan done: requeued %d pages in %v (%d scan errors).", requeued, time.Since(start), scanErrors)
	return requeued, scanErrors, scanErr
}

// WriteVisitedLog dumps every visited URL (one per line, claim prefix
// stripped) to the given file.
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating visited log '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	prefix := []byte(pageKeyPrefix)
	written := 0
	var writeErr error

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-s.ctx.Done():
				return s.ctx.Err()
			default:
			}

			key := it.Item().KeyCopy(nil)
			if !bytes.HasPrefix(key, prefix) {
				s.log.Warnf("Skipping key without page prefix: %s", string(key))
				continue
			}
			if _, wErr := writer.WriteString(string(key[len(prefix):]) + "\n"); wErr != nil && writeErr == nil {
				writeErr = wErr
			}
			written++
			if written%5000 == 0 {
				if fErr := writer.Flush(); fErr != nil && writeErr == nil {
					writeErr = fErr
				}
			}
		}
		return nil
	})

	if fErr := writer.Flush(); fErr != nil && writeErr == nil {
		writeErr = fErr
	}
	if sErr := file.Sync(); sErr != nil && writeErr == nil {
		writeErr = sErr
	}

	if iterErr != nil {
		s.log.Errorf("Visited log iteration failed: %v", iterErr)
		return iterErr
	}
	if writeErr != nil {
		s.log.Warnf("Visited log written with errors (~%d URLs): %v", written, writeErr)
		return writeErr
	}
	s.log.Infof("Wrote %d visited URLs to %s", written, filePath)
	return nil
}

// Close shuts the database down. Safe to call more than once.
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Info("Closing visited DB.")
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing visited DB: %v", err)
		return err
	}
	return nil
}
