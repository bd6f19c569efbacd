package output

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02T15:04:05-07:00"

	// NegativeDate stands in for timestamps before the epoch.
	NegativeDate = "0000-00-00T00:00:00+00:00"

	// InvalidDate stands in for wall clock times the source zone skips.
	InvalidDate = "INVALID DATETIME"
)

// Zones names the zone a bodyfile's wall clock was recorded in and the zone
// the timeline is rendered in.
type Zones struct {
	From *time.Location
	To   *time.Location
}

// UTC renders timestamps as they are.
func UTC() Zones {
	return Zones{From: time.UTC, To: time.UTC}
}

// LoadZones resolves IANA zone names. An empty name means UTC.
func LoadZones(from, to string) (Zones, error) {
	src, err := loadZone(from)
	if err != nil {
		return Zones{}, fmt.Errorf("source timezone: %w", err)
	}
	dst, err := loadZone(to)
	if err != nil {
		return Zones{}, fmt.Errorf("destination timezone: %w", err)
	}
	return Zones{From: src, To: dst}, nil
}

func loadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// FormatDate renders ts. The clock reading ts encodes is taken to be local
// time in z.From and is shown with its offset in z.To.
func FormatDate(ts int64, z Zones) string {
	if ts < 0 {
		return NegativeDate
	}

	from, to := z.From, z.To
	if from == nil {
		from = time.UTC
	}
	if to == nil {
		to = time.UTC
	}

	wall := time.Unix(ts, 0).UTC()
	local := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, from)

	// time.Date normalizes readings that fall into a gap.
	if local.Hour() != wall.Hour() || local.Minute() != wall.Minute() || local.Day() != wall.Day() {
		return InvalidDate
	}

	return local.In(to).Format(dateLayout)
}
