package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekplan/internal/log"
)

// Record is one decoded VEVENT.
//
// Start and End carry the wall-clock reading in the event's own zone; their
// Location is not meaningful. Offset is that zone's UTC offset in minutes at
// Start, or nil for floating times that should be read in the viewer's zone.
type Record struct {
	UID   string
	Title string

	Start  time.Time
	End    time.Time
	Offset *int
	AllDay bool

	// Zone is the IANA zone from TZID, if any. Recurrences are expanded in it
	// so DST transitions inside the week are honoured.
	Zone string

	RRule   string
	ExDates []time.Time
}

// Instant returns t interpreted with r's offset, or in loc for floating
// records.
func (r Record) Instant(t time.Time, loc *time.Location) time.Time {
	wall := func(l *time.Location) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, l)
	}
	if r.Offset == nil {
		return wall(loc)
	}
	return wall(time.FixedZone("", *r.Offset*60))
}

const (
	defaultTitle    = "Imported Event"
	defaultDuration = 60 * time.Minute
)

// ErrEmptyCalendar is returned for an ICS payload without a VCALENDAR body.
var ErrEmptyCalendar = errors.New("empty ICS body")

// Decode parses a single ICS payload into records. VEVENTs that cannot be
// read (no DTSTART, unparseable times) are logged and skipped. A
// RECURRENCE-ID instance excludes its slot from the series and is returned
// as a record of its own.
func Decode(source string, body []byte) ([]Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyCalendar
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var (
		records   []Record
		overrides []override
	)
	for _, ve := range cal.Events() {
		rec, rid, perr := decodeVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "source", redactURL(source))
			continue
		}
		if rid != nil {
			overrides = append(overrides, override{rid: *rid, rec: rec})
			continue
		}
		records = append(records, rec)
	}
	records = attachOverrides(records, overrides)

	appLog.Info("ics decode completed", "source", redactURL(source), "event_count", len(records))
	return records, nil
}

type override struct {
	rid time.Time
	rec Record
}

// attachOverrides turns RECURRENCE-ID instances into EXDATEs of their
// series plus standalone records.
func attachOverrides(records []Record, overrides []override) []Record {
	for _, ov := range overrides {
		for i := range records {
			if records[i].UID == ov.rec.UID && records[i].RRule != "" {
				records[i].ExDates = append(records[i].ExDates, ov.rid)
			}
		}
		records = append(records, ov.rec)
	}
	return records
}

func decodeVEvent(ve *ical.VEvent) (Record, *time.Time, error) {
	var out Record

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	out.Title = defaultTitle
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		out.Title = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, nil, errors.New("missing DTSTART")
	}
	start, err := parseDateTime(dtStart)
	if err != nil {
		return out, nil, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start.wall
	out.Offset = start.offset
	out.Zone = start.zone
	out.AllDay = start.date

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, err := parseDateTime(ve.GetProperty(ical.ComponentPropertyDtEnd))
		if err != nil {
			return out, nil, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end.wall
		// DTEND in another zone: re-express it in DTSTART's wall clock.
		if end.offset != nil && start.offset != nil && *end.offset != *start.offset {
			out.End = end.wall.Add(time.Duration(*start.offset-*end.offset) * time.Minute)
		}
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return out, nil, fmt.Errorf("DURATION: %w", err)
		}
		out.End = out.Start.Add(d)
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start.Add(defaultDuration)
	}
	if !out.End.After(out.Start) {
		out.End = out.Start.Add(defaultDuration)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part)
			if err != nil {
				continue
			}
			if strings.HasSuffix(part, "Z") {
				t = seriesWall(out, t)
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if rid, err := parseDateTime(p); err == nil {
			t := rid.wall
			if rid.offset != nil {
				t = seriesWall(out, rid.wall.Add(-time.Duration(*rid.offset)*time.Minute))
			}
			return out, &t, nil
		}
	}

	return out, nil, nil
}

// seriesWall re-expresses an absolute instant as a wall clock in rec's zone.
func seriesWall(rec Record, instant time.Time) time.Time {
	local := instant.UTC()
	if rec.Zone != "" {
		if loc, err := time.LoadLocation(rec.Zone); err == nil {
			local = instant.In(loc)
		}
	} else if rec.Offset != nil {
		local = instant.In(time.FixedZone("", *rec.Offset*60))
	}
	return wallUTC(local)
}

func wallUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// dateTime is a parsed DATE or DATE-TIME property.
type dateTime struct {
	wall   time.Time // wall clock, location UTC
	offset *int
	zone   string
	date   bool
}

func parseDateTime(p *ical.IANAProperty) (dateTime, error) {
	var out dateTime
	val := strings.TrimSpace(p.Value)

	var tzid string
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.date = true
		}
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			tzid = strings.Trim(tzs[0], `"`)
		}
	}
	if !strings.Contains(val, "T") {
		out.date = true
	}

	wall, err := parseICSTime(val)
	if err != nil {
		return out, err
	}
	out.wall = wallUTC(wall)

	switch {
	case out.date:
		// All-day dates are floating.
	case strings.HasSuffix(val, "Z"):
		zero := 0
		out.offset = &zero
	case tzid != "":
		loc, err := time.LoadLocation(tzid)
		if err != nil {
			appLog.Debug("unknown TZID, treating as floating", "tzid", tzid)
			break
		}
		_, secs := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc).Zone()
		mins := secs / 60
		out.offset = &mins
		out.zone = tzid
	}
	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// Floating and date values are returned in UTC as a plain wall clock.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.Parse("20060102T150405", v)
	}

	// Date-only (all-day), e.g., 20250101
	return time.Parse("20060102", v)
}

// parseDuration reads the RFC 5545 dur-value subset used in practice:
// [+-]P[nW][nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	neg := false
	switch {
	case strings.HasPrefix(v, "-"):
		neg = true
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}

	var (
		total  time.Duration
		n      int
		digits bool
		inTime bool
	)
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		unit := time.Duration(n)
		switch {
		case r == 'W' && !inTime:
			total += unit * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += unit * 24 * time.Hour
		case r == 'H' && inTime:
			total += unit * time.Hour
		case r == 'M' && inTime:
			total += unit * time.Minute
		case r == 'S' && inTime:
			total += unit * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		n, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if neg {
		total = -total
	}
	return total, nil
}
