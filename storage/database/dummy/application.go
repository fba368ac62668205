package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/occupeye/backend/core/application"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) query() []application.Application {
	apps := make([]application.Application, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		apps = append(apps, *a)
	}
	return apps
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app.ID = uuid.New().String()
	repo.db.table[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) GetApplicationByID(_ context.Context, id string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.table[id]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) QueryApplicationsByStudent(_ context.Context, studentID string) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var apps []application.Application
	for _, app := range repo.query() {
		if app.StudentID == studentID {
			apps = append(apps, app)
		}
	}
	sortApplicationsDesc(apps)
	return apps, nil
}

func (repo *applicationRepository) FilterApplications(_ context.Context, filter application.QueryFilter) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := repo.query()
	if filter.StudentID != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.StudentID == filter.StudentID {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	if apps != nil && filter.DormID != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.DormID == filter.DormID {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	if apps != nil && filter.Status != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.Status == filter.Status {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}

	sortApplicationsDesc(apps)
	return apps, nil
}

func (repo *applicationRepository) HasPendingApplication(_ context.Context, studentID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, app := range repo.query() {
		if app.StudentID == studentID && app.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (repo *applicationRepository) UpdateApplication(_ context.Context, app application.Application) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[app.ID]; !ok {
		return application.Application{}, application.ErrNotFound
	}
	repo.db.table[app.ID] = &app
	return app, nil
}

func sortApplicationsDesc(apps []application.Application) {
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
}
