package photons

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the timestamps stored on records and import runs.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies record ids.
type IDGenerator interface {
	New() string
}

// RealClock reads the system clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator issues random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
