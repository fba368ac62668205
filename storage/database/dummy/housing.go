package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/occupeye/backend/core/housing"
)

type housingRepository struct {
	dorms *dormTable
	rooms *roomTable
}

var _ housing.Repository = (*housingRepository)(nil) // interface compliance check

func NewHousingRepository(db *DB) housing.Repository {
	return &housingRepository{dorms: db.dorm, rooms: db.room}
}

func (repo *housingRepository) queryDorms() []housing.Dorm {
	dorms := make([]housing.Dorm, 0, len(repo.dorms.table))
	for _, d := range repo.dorms.table {
		dorms = append(dorms, *d)
	}
	return dorms
}

func (repo *housingRepository) queryRooms() []housing.Room {
	rooms := make([]housing.Room, 0, len(repo.rooms.table))
	for _, r := range repo.rooms.table {
		rooms = append(rooms, *r)
	}
	return rooms
}

func (repo *housingRepository) CheckDormNameUniqueness(_ context.Context, name string, excludedDorms ...housing.Dorm) error {
	repo.dorms.RLock()
	defer repo.dorms.RUnlock()

	for _, dorm := range repo.queryDorms() {
		if dorm.Name != name {
			continue
		}
		excluded := false
		for _, excl := range excludedDorms {
			if excl.ID == dorm.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return housing.ErrDormNameExists
		}
	}
	return nil
}

func (repo *housingRepository) CreateDorm(_ context.Context, dorm housing.Dorm) (housing.Dorm, error) {
	repo.dorms.Lock()
	defer repo.dorms.Unlock()

	dorm.ID = uuid.New().String()
	repo.dorms.table[dorm.ID] = &dorm
	return dorm, nil
}

func (repo *housingRepository) QueryAllDorms(_ context.Context) ([]housing.Dorm, error) {
	repo.dorms.RLock()
	defer repo.dorms.RUnlock()

	dorms := repo.queryDorms()
	sort.Slice(dorms, func(i, j int) bool { return dorms[i].Name < dorms[j].Name })
	return dorms, nil
}

func (repo *housingRepository) GetDormByID(_ context.Context, id string) (housing.Dorm, error) {
	repo.dorms.RLock()
	defer repo.dorms.RUnlock()

	if dorm, ok := repo.dorms.table[id]; ok {
		return *dorm, nil
	}
	return housing.Dorm{}, housing.ErrDormNotFound
}

func (repo *housingRepository) GetDormByName(_ context.Context, name string) (housing.Dorm, error) {
	repo.dorms.RLock()
	defer repo.dorms.RUnlock()

	for _, dorm := range repo.queryDorms() {
		if dorm.Name == name {
			return dorm, nil
		}
	}
	return housing.Dorm{}, housing.ErrDormNotFound
}

func (repo *housingRepository) UpdateDorm(_ context.Context, dorm housing.Dorm) (housing.Dorm, error) {
	repo.dorms.Lock()
	defer repo.dorms.Unlock()

	if _, ok := repo.dorms.table[dorm.ID]; !ok {
		return housing.Dorm{}, housing.ErrDormNotFound
	}
	repo.dorms.table[dorm.ID] = &dorm
	return dorm, nil
}

func (repo *housingRepository) DeleteDormsByID(_ context.Context, ids ...string) error {
	repo.dorms.Lock()
	defer repo.dorms.Unlock()
	for _, id := range ids {
		delete(repo.dorms.table, id)
	}
	return nil
}

func (repo *housingRepository) CheckRoomNumberUniqueness(_ context.Context, dormID, number string, excludedRooms ...housing.Room) error {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	for _, room := range repo.queryRooms() {
		if room.DormID != dormID || room.Number != number {
			continue
		}
		excluded := false
		for _, excl := range excludedRooms {
			if excl.ID == room.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return housing.ErrRoomNumberExists
		}
	}
	return nil
}

func (repo *housingRepository) CreateRoom(_ context.Context, room housing.Room) (housing.Room, error) {
	repo.rooms.Lock()
	defer repo.rooms.Unlock()

	room.ID = uuid.New().String()
	repo.rooms.table[room.ID] = &room
	return room, nil
}

func (repo *housingRepository) QueryAllRooms(_ context.Context) ([]housing.Room, error) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	rooms := repo.queryRooms()
	sortRooms(rooms)
	return rooms, nil
}

func (repo *housingRepository) QueryRoomsByDorm(_ context.Context, dormID string) ([]housing.Room, error) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	var rooms []housing.Room
	for _, room := range repo.queryRooms() {
		if room.DormID == dormID {
			rooms = append(rooms, room)
		}
	}
	sortRooms(rooms)
	return rooms, nil
}

func (repo *housingRepository) GetRoomByID(_ context.Context, id string) (housing.Room, error) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	if room, ok := repo.rooms.table[id]; ok {
		return *room, nil
	}
	return housing.Room{}, housing.ErrRoomNotFound
}

func (repo *housingRepository) UpdateRoom(_ context.Context, room housing.Room) (housing.Room, error) {
	repo.rooms.Lock()
	defer repo.rooms.Unlock()

	if _, ok := repo.rooms.table[room.ID]; !ok {
		return housing.Room{}, housing.ErrRoomNotFound
	}
	repo.rooms.table[room.ID] = &room
	return room, nil
}

func (repo *housingRepository) AdjustRoomOccupancy(_ context.Context, id string, delta int) (housing.Room, error) {
	repo.rooms.Lock()
	defer repo.rooms.Unlock()

	room, ok := repo.rooms.table[id]
	if !ok {
		return housing.Room{}, housing.ErrRoomNotFound
	}
	room.Occupied += delta
	if room.Occupied < 0 {
		room.Occupied = 0
	}
	return *room, nil
}

func (repo *housingRepository) DeleteRoomsByID(_ context.Context, ids ...string) error {
	repo.rooms.Lock()
	defer repo.rooms.Unlock()
	for _, id := range ids {
		delete(repo.rooms.table, id)
	}
	return nil
}

func sortRooms(rooms []housing.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].DormID != rooms[j].DormID {
			return rooms[i].DormID < rooms[j].DormID
		}
		return rooms[i].Number < rooms[j].Number
	})
}
