package archive

import (
	"log"
	"sync"
	"time"
)

// DefaultRetentionDays is how long lines from earlier sessions are kept in a
// file-backed archive.
const DefaultRetentionDays = 7

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	// Every is the cleanup period. Zero means hourly.
	Every time.Duration
}

// RetentionCleaner periodically deletes lines of earlier sessions that are
// older than the retention period. The running session is never touched.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	every         time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner runs one cleanup immediately and then every period.
// Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, conf ...RetentionConfig) *RetentionCleaner {
	days := DefaultRetentionDays
	every := time.Hour
	if len(conf) > 0 {
		days = conf[0].RetentionDays
		if conf[0].Every > 0 {
			every = conf[0].Every
		}
	}
	if days <= 0 {
		return nil
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: days,
		every:         every,
		done:          make(chan struct{}),
	}

	// catch up on sessions left behind by earlier runs
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cutoff() time.Time {
	return time.Now().Add(-time.Duration(rc.retentionDays) * 24 * time.Hour)
}

func (rc *RetentionCleaner) cleanup() {
	rows, err := rc.store.DeleteBefore(rc.cutoff())
	if err != nil {
		log.Printf("archive: retention cleanup error: %v", err)
		return
	}
	if rows > 0 {
		log.Printf("archive: retention cleanup deleted %d lines (older than %d days)", rows, rc.retentionDays)
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
