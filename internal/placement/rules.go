package placement

import (
	"weekplan/internal/config"
	"weekplan/internal/model"
)

// Rules validates user blocks and resolves collisions by shifting forward.
// It implements week.Policy.
type Rules struct {
	// MinDuration is the shortest block that may be stored.
	MinDuration model.TimeOfDay
	// DayEnd is the latest allowed end; blocks never cross midnight.
	DayEnd model.TimeOfDay
}

// NewRules builds Rules from the grid configuration.
func NewRules(cfg config.GridConfig) Rules {
	return Rules{
		MinDuration: model.TimeOfDay(cfg.MinBlockMinutes) * model.Minute,
		DayEnd:      model.DayEnd,
	}
}

// Validate checks a candidate's geometry without looking at other blocks.
func (r Rules) Validate(c model.Block) error {
	if !c.Day.Valid() {
		return model.Invalidf("day", "%d is outside Monday..Sunday", int(c.Day))
	}
	if c.Start < 0 {
		return model.Invalidf("start", "%s is before midnight", c.Start)
	}
	if c.End <= c.Start {
		return model.Invalidf("end", "end %s must be after start %s", c.End, c.Start)
	}
	if c.Duration() < r.MinDuration {
		return model.Invalidf("duration", "%d minutes is shorter than the %d minute minimum",
			c.Duration().Minutes(), r.MinDuration.Minutes())
	}
	if c.End > r.DayEnd {
		return model.Invalidf("end", "%s is past the end of the day", c.End)
	}
	return nil
}

// Resolve validates c and, if it overlaps any of others (user blocks on the
// same day, sorted or not), moves its start to the end of the conflicting
// block keeping the duration. The loop runs at most len(others)+1 times:
// each shift moves past one distinct block and never backwards.
func (r Rules) Resolve(c model.Block, others []model.Block) (model.Block, error) {
	if err := r.Validate(c); err != nil {
		return model.Block{}, err
	}

	dur := c.Duration()
	for i := 0; i <= len(others); i++ {
		conflict, ok := firstConflict(c, others)
		if !ok {
			return c, nil
		}
		c.Start = conflict.End
		c.End = c.Start + dur
		if c.End > r.DayEnd {
			break
		}
	}

	return model.Block{}, &model.PlacementError{
		Reason: model.NoRoomAvailable,
		Day:    c.Day,
		Start:  c.Start,
		End:    c.End,
	}
}

// firstConflict returns the overlapping block with the earliest start.
func firstConflict(c model.Block, others []model.Block) (model.Block, bool) {
	var (
		best  model.Block
		found bool
	)
	for _, o := range others {
		if o.ID != "" && o.ID == c.ID {
			continue
		}
		if !c.Overlaps(o) {
			continue
		}
		if !found || o.Start < best.Start {
			best, found = o, true
		}
	}
	return best, found
}
