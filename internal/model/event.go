package model

import "time"

// Event groups the seats of a single ticketed occasion. The seat pool
// of an event is fixed at seeding time; this service never grows or
// shrinks it.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – human readable event name.
//  Date       – when the event takes place.
//  TotalSeats – size of the fixed seat pool.
//  CreatedAt  – creation timestamp.
type Event struct {
	ID         uint64    // events.id
	Name       string    // events.name
	Date       time.Time // events.date
	TotalSeats uint32    // events.total_seats
	CreatedAt  time.Time // events.created_at
}
