package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weekplan/internal/log"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the zone floating recurrences are expanded in.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the instances produced. Only the visible
	// week is ever expanded.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the flattened records and the series that hit the cap.
type ExpandResult struct {
	Records         []Record
	TruncatedEvents []string
}

// Expand replaces every recurring record with one plain record per
// instance inside [RangeStart, RangeEnd]. Non-recurring records pass through
// untouched; range filtering of those is left to the caller. A series whose
// RRULE cannot be parsed keeps only its first instance.
func Expand(records []Record, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.RRule == "" {
			out = append(out, rec)
			continue
		}

		occ, hitCap, err := expandSeries(rec, cfg)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", rec.UID, "rrule", rec.RRule)
			rec.RRule = ""
			out = append(out, rec)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, rec.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", rec.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}

	result.Records = out
	return result, nil
}

func expandSeries(rec Record, cfg ExpandConfig) ([]Record, bool, error) {
	r, err := rrule.StrToRRule(rec.RRule)
	if err != nil {
		return nil, false, err
	}

	loc := seriesLocation(rec, cfg.DisplayLocation)
	dtStart := inLocation(rec.Start, loc)
	r.DTStart(dtStart)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range rec.ExDates {
		set.ExDate(inLocation(ex, loc))
	}

	times := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := rec.End.Sub(rec.Start)
	out := make([]Record, 0, len(times))
	for _, t := range times {
		inst := rec
		inst.RRule = ""
		inst.ExDates = nil
		inst.Start = wallUTC(t)
		inst.End = inst.Start.Add(dur)
		// Offsets move across DST inside named zones.
		if rec.Zone != "" && rec.Offset != nil {
			_, secs := t.Zone()
			mins := secs / 60
			inst.Offset = &mins
		}
		out = append(out, inst)
	}
	return out, hitCap, nil
}

// seriesLocation is the zone the series' wall clock belongs to.
func seriesLocation(rec Record, display *time.Location) *time.Location {
	if rec.Zone != "" {
		if loc, err := time.LoadLocation(rec.Zone); err == nil {
			return loc
		}
	}
	if rec.Offset != nil {
		return time.FixedZone("", *rec.Offset*60)
	}
	return display
}

func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
}
