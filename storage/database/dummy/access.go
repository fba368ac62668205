package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/occupeye/backend/core/access"
)

type accessRepository struct {
	db *eventTable
}

var _ access.Repository = (*accessRepository)(nil) // interface compliance check

func NewAccessRepository(db *DB) access.Repository {
	return &accessRepository{db: db.event}
}

func (repo *accessRepository) query() []access.Event {
	evts := make([]access.Event, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		evt := *e
		evt.Timestamp = access.NormalizeEventTime(evt.Timestamp)
		evts = append(evts, evt)
	}
	return evts
}

func (repo *accessRepository) AppendEvent(_ context.Context, evt access.Event) (access.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	evt.ID = uuid.New().String()
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *accessRepository) QueryEventsByUser(_ context.Context, userID string) ([]access.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var evts []access.Event
	for _, evt := range repo.query() {
		if evt.UserID == userID {
			evts = append(evts, evt)
		}
	}
	return evts, nil
}

func (repo *accessRepository) QueryRecentEvents(_ context.Context, limit int) ([]access.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	evts := repo.query()
	sort.Slice(evts, func(i, j int) bool { return evts[i].Timestamp.After(evts[j].Timestamp) })
	if limit > 0 && len(evts) > limit {
		evts = evts[:limit]
	}
	return evts, nil
}
