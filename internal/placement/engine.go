// Package placement turns pointer gestures into validated blocks and owns
// the collision policy the week delegates to.
package placement

import (
	"errors"
	"fmt"

	"weekplan/internal/grid"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
	"weekplan/internal/week"
)

// Kind is the phase of a pointer gesture.
type Kind string

const (
	KindStart       Kind = "start"
	KindMove        Kind = "move"
	KindEnd         Kind = "end"
	KindResizeStart Kind = "resizeStart"
	KindResizeEnd   Kind = "resizeEnd"
)

// Gesture is one discrete pointer event in grid pixel coordinates.
type Gesture struct {
	Kind Kind    `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`

	// TargetBlockID names the block being moved or resized.
	TargetBlockID model.BlockID `json:"target_block_id,omitempty"`

	// TodoID / Title describe a new block dropped from a to-do list. They are
	// read on start only.
	TodoID model.TodoID `json:"todo_id,omitempty"`
	Title  string       `json:"title,omitempty"`
}

// Preview is the snapped geometry a gesture would produce.
type Preview struct {
	Day   model.Day       `json:"day"`
	Start model.TimeOfDay `json:"start"`
	End   model.TimeOfDay `json:"end"`
}

// Result reports what Handle did. Committed is set only on end/resizeEnd.
type Result struct {
	Preview   *Preview      `json:"preview,omitempty"`
	Committed model.BlockID `json:"committed,omitempty"`
}

// ErrNoGesture is wrapped by errors for move/end events without a start.
var ErrNoGesture = errors.New("no gesture in progress")

type dragMode int

const (
	modeIdle dragMode = iota
	modeDrag
	modeResize
)

type dragState struct {
	mode     dragMode
	block    model.Block // template: id/title/colour/todo of the block
	duration model.TimeOfDay
	grabDY   float64 // pointer y minus block top at start
}

// Engine is the single-threaded gesture processor. One gesture is tracked
// at a time; a new start abandons the previous one.
type Engine struct {
	grid  *grid.Model
	week  *week.Week
	rules Rules

	defaultDuration model.TimeOfDay

	drag dragState
}

// NewEngine wires the engine to the coordinate model and the week it
// commits into. defaultDuration applies to blocks dropped from to-dos.
func NewEngine(g *grid.Model, w *week.Week, rules Rules, defaultDuration model.TimeOfDay) *Engine {
	if defaultDuration < rules.MinDuration {
		defaultDuration = rules.MinDuration
	}
	return &Engine{grid: g, week: w, rules: rules, defaultDuration: defaultDuration}
}

// Handle processes one gesture event.
func (e *Engine) Handle(g Gesture) (Result, error) {
	switch g.Kind {
	case KindStart:
		return e.start(g)
	case KindResizeStart:
		return e.resizeStart(g)
	case KindMove:
		p, err := e.preview(g)
		if err != nil {
			return Result{}, err
		}
		return Result{Preview: &p}, nil
	case KindEnd, KindResizeEnd:
		return e.finish(g)
	default:
		return Result{}, model.Invalidf("kind", "unknown gesture %q", g.Kind)
	}
}

// Cancel abandons any gesture in progress without touching the week.
func (e *Engine) Cancel() {
	e.drag = dragState{}
}

func (e *Engine) start(g Gesture) (Result, error) {
	e.drag = dragState{}

	if g.TargetBlockID != "" {
		b, err := e.week.Block(g.TargetBlockID)
		if err != nil {
			return Result{}, err
		}
		if b.Imported() {
			return Result{}, model.Invalidf("target_block_id", "imported block %s is read-only", b.ID)
		}
		// Measured from the real start so blocks reaching above the grid
		// keep their offset.
		top := e.grid.OffsetY(b.Start)
		e.drag = dragState{mode: modeDrag, block: b, duration: b.Duration(), grabDY: g.Y - top}
	} else {
		tpl := model.Block{Title: g.Title, TodoID: g.TodoID, Color: model.DefaultColor, Source: model.SourceUser}
		if g.TodoID != "" {
			item, err := e.week.Todo(g.TodoID)
			if err != nil {
				return Result{}, err
			}
			if tpl.Title == "" {
				tpl.Title = item.Text
			}
		}
		e.drag = dragState{mode: modeDrag, block: tpl, duration: e.defaultDuration}
	}

	p, err := e.preview(Gesture{Kind: KindMove, X: g.X, Y: g.Y})
	if err != nil {
		return Result{}, err
	}
	return Result{Preview: &p}, nil
}

func (e *Engine) resizeStart(g Gesture) (Result, error) {
	e.drag = dragState{}

	if g.TargetBlockID == "" {
		return Result{}, model.Invalidf("target_block_id", "resize needs a target block")
	}
	b, err := e.week.Block(g.TargetBlockID)
	if err != nil {
		return Result{}, err
	}
	if b.Imported() {
		return Result{}, model.Invalidf("target_block_id", "imported block %s is read-only", b.ID)
	}
	e.drag = dragState{mode: modeResize, block: b, duration: b.Duration()}
	p := Preview{Day: b.Day, Start: b.Start, End: b.End}
	return Result{Preview: &p}, nil
}

// preview computes the snapped interval for the pointer without committing.
func (e *Engine) preview(g Gesture) (Preview, error) {
	switch e.drag.mode {
	case modeDrag:
		day, start := e.grid.CoordinateToTime(g.X, g.Y-e.drag.grabDY)
		// Keep the whole block inside the visible hours while dragging.
		if latest := e.grid.GridEnd() - e.drag.duration; start > latest && latest >= e.grid.GridStart() {
			start = latest
		}
		return Preview{Day: day, Start: start, End: start + e.drag.duration}, nil
	case modeResize:
		_, end := e.grid.CoordinateToTime(g.X, g.Y)
		b := e.drag.block
		return Preview{Day: b.Day, Start: b.Start, End: end}, nil
	default:
		return Preview{}, fmt.Errorf("%w: %w", model.Invalidf("kind", "%s without start", g.Kind), ErrNoGesture)
	}
}

func (e *Engine) finish(g Gesture) (Result, error) {
	wantMode := modeDrag
	if g.Kind == KindResizeEnd {
		wantMode = modeResize
	}
	if e.drag.mode != wantMode {
		return Result{}, fmt.Errorf("%w: %w", model.Invalidf("kind", "%s without matching start", g.Kind), ErrNoGesture)
	}

	p, err := e.preview(g)
	state := e.drag
	// The gesture is over whether or not the commit succeeds.
	e.drag = dragState{}
	if err != nil {
		return Result{}, err
	}

	candidate := state.block
	candidate.Day = p.Day
	candidate.Start = p.Start
	candidate.End = p.End

	id, err := e.Place(candidate)
	if err != nil {
		return Result{Preview: &p}, err
	}
	return Result{Preview: &p, Committed: id}, nil
}

// Place validates candidate and commits it through the week, which applies
// Rules (including collision shifting). It is the entry point for
// non-gesture placement such as the HTTP API.
func (e *Engine) Place(candidate model.Block) (model.BlockID, error) {
	if err := e.rules.Validate(candidate); err != nil {
		appLog.Debug("placement rejected", "day", candidate.Day, "start", candidate.Start, "end", candidate.End, "err", err)
		return "", err
	}
	id, err := e.week.CommitBlock(candidate)
	if err != nil {
		appLog.Debug("placement failed", "day", candidate.Day, "start", candidate.Start, "end", candidate.End, "err", err)
		return "", err
	}
	return id, nil
}
