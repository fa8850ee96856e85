package storage

import (
	"context"
	"time"

	"github.com/safequote/safequote/pkg/events"
	"github.com/sirupsen/logrus"
)

const recordTimeout = 10 * time.Second

// Recorder writes every SearchCompleted event it receives to a DB. Errors are
// logged, never returned, since the bus has nobody to return them to.
type Recorder struct {
	db   *DB
	lock Locker
	log  logrus.FieldLogger
}

// NewRecorder returns a recorder for db. lock may be nil when no other
// process writes to the same file.
func NewRecorder(db *DB, lock Locker, log logrus.FieldLogger) *Recorder {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Recorder{db: db, lock: lock, log: log}
}

// Attach subscribes the recorder to bus and returns the unsubscribe func.
func (r *Recorder) Attach(bus *events.Bus[events.SearchCompleted]) func() {
	return bus.Subscribe(r.Handle)
}

// Handle records ev.
func (r *Recorder) Handle(ev events.SearchCompleted) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if r.lock != nil {
		if err := r.lock.Lock(ctx); err != nil {
			r.log.Errorf("Could not lock search history: %v", err)
			return
		}
		defer func() {
			if err := r.lock.Unlock(); err != nil {
				r.log.Warnf("Could not unlock search history: %v", err)
			}
		}()
	}

	id, err := r.db.RecordSearch(ctx, ev)
	if err != nil {
		r.log.WithError(err).Error("Failed to record search")
		return
	}
	r.log.WithFields(logrus.Fields{
		"id":      id,
		"results": len(ev.Vehicles),
	}).Debug("Recorded search")
}
