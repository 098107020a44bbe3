package registry

import "github.com/elfrances/grs/internal/network"

// RiderRegistry owns every connection and rider record. It is indexed
// by connection handle (for event dispatch) and by category (for the
// broadcast enumeration). All mutation happens on the engine's event
// loop, so the registry itself takes no locks.
type RiderRegistry interface {
	// AddRider creates a rider in the connected state for a freshly
	// accepted connection. No category membership yet.
	AddRider(conn network.ConnectionInterface, remoteAddr string) *Rider

	// GetRider looks a rider up by connection handle.
	GetRider(id string) (*Rider, bool)

	// Register validates and applies a registration request: checks
	// the ride-name claim and the connected state, assigns the next
	// bib number, computes the age group, and inserts the rider at the
	// head of its category bucket.
	Register(id, name string, gender Gender, age int, rideClaim string) (*Rider, error)

	// RecordProgress overwrites the rider's distance and power.
	RecordProgress(id string, distance, power int) error

	// RemoveRider removes the rider from its category bucket (if any)
	// and from the handle index. Idempotent; returns the removed rider
	// or nil when the handle is unknown.
	RemoveRider(id string) *Rider

	// ForEachRegistered visits every registered rider across all
	// category buckets in broadcast order. The visitor returns false
	// to stop early.
	ForEachRegistered(visit func(*Rider) bool)

	// ForEachInCategory visits the registered riders of one category
	// head to tail, i.e. most-recently-registered first.
	ForEachInCategory(cat Category, visit func(*Rider) bool)

	// Count is the number of live connections, registered or not.
	Count() int

	// RideActive gates progress updates and leaderboard broadcasting.
	RideActive() bool
	SetRideActive(active bool)
}
