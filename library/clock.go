package library

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// DateLayout is the ISO calendar date format of loan and return dates.
const DateLayout = "2006-01-02"

// Clock supplies the current time to the lending rules.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// IDGen issues loan reference ids.
type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

// ULIDGen issues ULIDs, sortable by the time the loan was approved.
var ULIDGen IDGen = ulidGen{}

func (ulidGen) New() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// today returns the calendar date of now as an ISO string.
func today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// daysSince counts whole calendar days between the ISO date and now.
func daysSince(c Clock, date string) (int, error) {
	now := c.Now()
	start, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return 0, err
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	// Round absorbs DST shifts between the two midnights.
	return int(midnight.Sub(start).Round(24*time.Hour) / (24 * time.Hour)), nil
}
