package registry

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/elfrances/grs/internal/network"
)

var (
	ErrWrongRide      = errors.New("ride name does not match")
	ErrInvalidState   = errors.New("invalid rider state")
	ErrRideNotStarted = errors.New("group ride is not active")
	ErrUnknownRider   = errors.New("unknown rider")
)

type riderRegistry struct {
	rideName string
	clock    clockwork.Clock

	riders  map[string]*Rider     // connection-handle index
	buckets map[Category][]*Rider // category index, head = most recently registered

	numRegistered int // doubles as the bib counter, never decremented
	rideActive    bool
}

func NewRiderRegistry(rideName string, clock clockwork.Clock) RiderRegistry {
	return &riderRegistry{
		rideName: rideName,
		clock:    clock,
		riders:   make(map[string]*Rider),
		buckets:  make(map[Category][]*Rider),
	}
}

func (rr *riderRegistry) AddRider(conn network.ConnectionInterface, remoteAddr string) *Rider {
	rider := &Rider{
		ID:         uuid.NewString(),
		Conn:       conn,
		RemoteAddr: remoteAddr,
		State:      StateConnected,
	}
	rr.riders[rider.ID] = rider

	return rider
}

func (rr *riderRegistry) GetRider(id string) (*Rider, bool) {
	rider, ok := rr.riders[id]
	return rider, ok
}

func (rr *riderRegistry) Register(id, name string, gender Gender, age int, rideClaim string) (*Rider, error) {
	rider, ok := rr.riders[id]
	if !ok {
		return nil, ErrUnknownRider
	}
	if rideClaim != rr.rideName {
		return nil, ErrWrongRide
	}
	if rider.State != StateConnected {
		return nil, ErrInvalidState
	}

	rider.Name = name
	rider.Gender = gender
	rider.Age = age
	rider.AgeGroup = AgeToAgeGroup(age)
	rider.RegTime = rr.clock.Now()

	// Bib numbers are strictly increasing for the lifetime of the
	// server and never reused, even if the holder disconnects.
	rr.numRegistered++
	rider.BibNum = rr.numRegistered

	rider.State = StateRegistered

	// Insert at the head of the category bucket: broadcast output
	// lists the most recently registered rider first.
	cat := rider.Category()
	rr.buckets[cat] = append([]*Rider{rider}, rr.buckets[cat]...)

	return rider, nil
}

func (rr *riderRegistry) RecordProgress(id string, distance, power int) error {
	rider, ok := rr.riders[id]
	if !ok {
		return ErrUnknownRider
	}
	if rider.State != StateRegistered && rider.State != StateActive {
		return ErrInvalidState
	}
	if !rr.rideActive {
		return ErrRideNotStarted
	}

	rider.Distance = distance
	rider.Power = power

	return nil
}

func (rr *riderRegistry) RemoveRider(id string) *Rider {
	rider, ok := rr.riders[id]
	if !ok {
		return nil
	}

	if rider.State == StateRegistered || rider.State == StateActive {
		rr.removeFromBucket(rider)
	}
	delete(rr.riders, id)

	return rider
}

func (rr *riderRegistry) ForEachRegistered(visit func(*Rider) bool) {
	for _, cat := range AllCategories() {
		for _, rider := range rr.buckets[cat] {
			if rider.State != StateRegistered && rider.State != StateActive {
				continue
			}
			if !visit(rider) {
				return
			}
		}
	}
}

func (rr *riderRegistry) ForEachInCategory(cat Category, visit func(*Rider) bool) {
	for _, rider := range rr.buckets[cat] {
		// Buckets only ever hold registered riders.
		if rider.State != StateRegistered && rider.State != StateActive {
			continue
		}
		if !visit(rider) {
			return
		}
	}
}

func (rr *riderRegistry) Count() int {
	return len(rr.riders)
}

func (rr *riderRegistry) RideActive() bool {
	return rr.rideActive
}

func (rr *riderRegistry) SetRideActive(active bool) {
	rr.rideActive = active
}

func (rr *riderRegistry) removeFromBucket(rider *Rider) {
	cat := rider.Category()
	bucket := rr.buckets[cat]
	for i, r := range bucket {
		if r == rider {
			rr.buckets[cat] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}
