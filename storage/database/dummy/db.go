package dummydb

import (
	"sync"

	"github.com/occupeye/backend/core/access"
	"github.com/occupeye/backend/core/application"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
)

type (
	DB struct {
		user         *userTable
		dorm         *dormTable
		room         *roomTable
		application  *applicationTable
		event        *eventTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	dormTable struct {
		sync.RWMutex
		table map[string]*housing.Dorm
	}

	roomTable struct {
		sync.RWMutex
		table map[string]*housing.Room
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*application.Application
	}

	eventTable struct {
		sync.RWMutex
		table map[string]*access.Event
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		dorm:         &dormTable{table: make(map[string]*housing.Dorm)},
		room:         &roomTable{table: make(map[string]*housing.Room)},
		application:  &applicationTable{table: make(map[string]*application.Application)},
		event:        &eventTable{table: make(map[string]*access.Event)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
