package model

import (
	"fmt"
	"time"
)

// Day is a day-of-week index inside the planner week. Monday is 0.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of columns in the grid.
const DaysPerWeek = 7

var dayNames = [DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Valid reports whether d is one of Monday..Sunday.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// DayOf maps a time.Weekday (Sunday=0) onto the Monday-first planner index.
func DayOf(w time.Weekday) Day {
	return Day((int(w) + 6) % 7)
}

// TimeOfDay is a wall-clock offset from local midnight, in seconds.
// Values run from 0 up to and including DayEnd (24:00), which is only
// meaningful as an exclusive end.
type TimeOfDay int

const (
	Minute TimeOfDay = 60
	Hour   TimeOfDay = 60 * Minute

	// DayEnd is midnight at the end of the day.
	DayEnd TimeOfDay = 24 * Hour
	// LastSecond is 23:59:59; events crossing midnight are clipped here.
	LastSecond TimeOfDay = DayEnd - 1
)

// Clock builds a TimeOfDay from hours, minutes and seconds.
func Clock(h, m, s int) TimeOfDay {
	return TimeOfDay(h)*Hour + TimeOfDay(m)*Minute + TimeOfDay(s)
}

// ClockOf returns the time-of-day reading of t in its own location.
func ClockOf(t time.Time) TimeOfDay {
	return Clock(t.Hour(), t.Minute(), t.Second())
}

// Minutes returns the offset in whole minutes.
func (t TimeOfDay) Minutes() int {
	return int(t / Minute)
}

// Duration converts the offset into a time.Duration.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// String formats as HH:MM, or HH:MM:SS when seconds are present.
func (t TimeOfDay) String() string {
	h := int(t / Hour)
	m := int(t%Hour) / 60
	s := int(t % Minute)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ParseClock parses "HH:MM" or "HH:MM:SS". "24:00" is accepted.
func ParseClock(v string) (TimeOfDay, error) {
	var h, m, s int
	n, err := fmt.Sscanf(v, "%d:%d:%d", &h, &m, &s)
	if err != nil && n < 2 {
		if _, err2 := fmt.Sscanf(v, "%d:%d", &h, &m); err2 != nil {
			return 0, fmt.Errorf("invalid clock %q", v)
		}
		s = 0
	}
	if h < 0 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	t := Clock(h, m, s)
	if t > DayEnd {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	return t, nil
}

// Source marks where a block came from.
type Source string

const (
	// SourceUser blocks are placed by gestures; mutable and collision checked.
	SourceUser Source = "user"
	// SourceImported blocks come from a calendar file; immutable, collision exempt.
	SourceImported Source = "imported"
)

// Color is an index into the event colour palette.
type Color int

const (
	ColorBlue Color = iota
	ColorYellow
	ColorGreen
	ColorRed

	numColors
)

// DefaultColor is used for imported blocks and blocks placed without a choice.
const DefaultColor = ColorBlue

var colorNames = [numColors]string{"blue", "yellow", "green", "red"}

// Valid reports whether c is a palette entry.
func (c Color) Valid() bool {
	return c >= ColorBlue && c < numColors
}

func (c Color) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Color(%d)", int(c))
	}
	return colorNames[c]
}

type (
	TodoID  string
	BlockID string
)

// ToDoItem is one entry of a day's to-do list.
type ToDoItem struct {
	ID   TodoID `json:"id"`
	Day  Day    `json:"day"`
	Text string `json:"text"`
	Done bool   `json:"done"`

	// BlockID is a weak reference to the block this to-do was scheduled as.
	BlockID BlockID `json:"block_id,omitempty"`
}

// Block is a scheduled interval on the grid, [Start, End) on a single day.
type Block struct {
	ID     BlockID   `json:"id"`
	Day    Day       `json:"day"`
	Start  TimeOfDay `json:"start"`
	End    TimeOfDay `json:"end"`
	Title  string    `json:"title"`
	Color  Color     `json:"color"`
	Source Source    `json:"source"`

	// TodoID links a user block back to the to-do it was dragged from.
	TodoID TodoID `json:"todo_id,omitempty"`
}

// Duration returns End - Start.
func (b Block) Duration() TimeOfDay {
	return b.End - b.Start
}

// Overlaps reports whether the half-open intervals of a and b intersect.
// Day is not considered.
func (b Block) Overlaps(o Block) bool {
	return b.Start < o.End && o.Start < b.End
}

// Imported reports whether the block came from a calendar import.
func (b Block) Imported() bool {
	return b.Source == SourceImported
}

// DaySnapshot is a copy of one day's contents.
type DaySnapshot struct {
	Day    Day        `json:"day"`
	Todos  []ToDoItem `json:"todos"`
	Blocks []Block    `json:"blocks"`
}

// WeekSnapshot is a deep copy of the whole week, safe to hand out.
type WeekSnapshot struct {
	Days [DaysPerWeek]DaySnapshot `json:"days"`
}
