package placement

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/config"
	"weekplan/internal/grid"
	"weekplan/internal/model"
	"weekplan/internal/week"
)

type fixture struct {
	grid   *grid.Model
	week   *week.Week
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultGrid()
	cfg.BasePixelsPerHour = 60 // one pixel per minute
	cfg.MinPixelsPerHour = 30
	cfg.MaxPixelsPerHour = 180

	rules := NewRules(cfg)
	g := grid.New(cfg)
	w := week.New(rules)
	return &fixture{grid: g, week: w, engine: NewEngine(g, w, rules, 60*model.Minute)}
}

// at returns the pointer position of (day, clock) plus a small offset into
// the column.
func (f *fixture) at(day model.Day, h, m int) (float64, float64) {
	x, y := f.grid.TimeToCoordinate(day, model.Clock(h, m, 0))
	return x + 10, y
}

func (f *fixture) place(t *testing.T, day model.Day, start, end model.TimeOfDay) model.BlockID {
	t.Helper()
	id, err := f.engine.Place(model.Block{Day: day, Start: start, End: end, Title: "b"})
	require.NoError(t, err)
	return id
}

func TestResolveShiftsPastConflict(t *testing.T) {
	r := Rules{MinDuration: 15 * model.Minute, DayEnd: model.DayEnd}
	existing := []model.Block{{ID: "a", Day: model.Tuesday, Start: model.Clock(9, 0, 0), End: model.Clock(10, 0, 0)}}

	got, err := r.Resolve(model.Block{Day: model.Tuesday, Start: model.Clock(9, 30, 0), End: model.Clock(10, 30, 0)}, existing)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(10, 0, 0), got.Start)
	assert.Equal(t, model.Clock(11, 0, 0), got.End)
}

func TestResolveWalksAdjacentBlocks(t *testing.T) {
	r := Rules{MinDuration: 15 * model.Minute, DayEnd: model.DayEnd}
	existing := []model.Block{
		{ID: "c", Start: model.Clock(11, 0, 0), End: model.Clock(11, 30, 0)},
		{ID: "a", Start: model.Clock(9, 0, 0), End: model.Clock(10, 0, 0)},
		{ID: "b", Start: model.Clock(10, 0, 0), End: model.Clock(10, 45, 0)},
	}

	got, err := r.Resolve(model.Block{Start: model.Clock(9, 30, 0), End: model.Clock(10, 30, 0)}, existing)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(11, 30, 0), got.Start)
	assert.Equal(t, model.Clock(12, 30, 0), got.End)
}

func TestResolveNoRoom(t *testing.T) {
	r := Rules{MinDuration: 15 * model.Minute, DayEnd: model.DayEnd}
	existing := []model.Block{{ID: "late", Start: model.Clock(22, 0, 0), End: model.Clock(23, 45, 0)}}

	_, err := r.Resolve(model.Block{Day: model.Friday, Start: model.Clock(22, 30, 0), End: model.Clock(23, 30, 0)}, existing)

	var perr *model.PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, model.NoRoomAvailable, perr.Reason)
	assert.Equal(t, model.Friday, perr.Day)
	assert.ErrorIs(t, err, model.ErrPlacement)
}

func TestResolveIgnoresItself(t *testing.T) {
	r := Rules{MinDuration: 15 * model.Minute, DayEnd: model.DayEnd}
	self := model.Block{ID: "x", Start: model.Clock(9, 0, 0), End: model.Clock(10, 0, 0)}

	got, err := r.Resolve(model.Block{ID: "x", Start: model.Clock(9, 15, 0), End: model.Clock(10, 15, 0)}, []model.Block{self})
	require.NoError(t, err)
	assert.Equal(t, model.Clock(9, 15, 0), got.Start)
}

func TestValidate(t *testing.T) {
	r := Rules{MinDuration: 15 * model.Minute, DayEnd: model.DayEnd}
	cases := map[string]model.Block{
		"inverted":    {Day: model.Monday, Start: model.Clock(10, 0, 0), End: model.Clock(9, 0, 0)},
		"empty":       {Day: model.Monday, Start: model.Clock(10, 0, 0), End: model.Clock(10, 0, 0)},
		"too short":   {Day: model.Monday, Start: model.Clock(10, 0, 0), End: model.Clock(10, 5, 0)},
		"bad day":     {Day: 7, Start: model.Clock(10, 0, 0), End: model.Clock(11, 0, 0)},
		"past day":    {Day: model.Monday, Start: model.Clock(23, 30, 0), End: model.Clock(24, 30, 0)},
		"negative":    {Day: model.Monday, Start: -model.Minute, End: model.Clock(1, 0, 0)},
		"bad day low": {Day: -1, Start: model.Clock(10, 0, 0), End: model.Clock(11, 0, 0)},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, r.Validate(b), model.ErrValidation)
		})
	}
	assert.NoError(t, r.Validate(model.Block{Day: model.Sunday, Start: model.Clock(23, 0, 0), End: model.DayEnd}))
}

func TestTuesdayScenario(t *testing.T) {
	f := newFixture(t)
	f.place(t, model.Tuesday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	x, y := f.at(model.Tuesday, 9, 30)
	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, Title: "new"})
	require.NoError(t, err)
	res, err := f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	require.NoError(t, err)

	b, err := f.week.Block(res.Committed)
	require.NoError(t, err)
	assert.Equal(t, model.Tuesday, b.Day)
	assert.Equal(t, model.Clock(10, 0, 0), b.Start)
	assert.Equal(t, model.Clock(11, 0, 0), b.End)
	assert.Equal(t, model.SourceUser, b.Source)
}

func TestDropFromTodoLinksBothWays(t *testing.T) {
	f := newFixture(t)
	todo, err := f.week.AddTodo(model.Thursday, "write report")
	require.NoError(t, err)

	x, y := f.at(model.Thursday, 14, 7)
	_, err = f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, TodoID: todo.ID})
	require.NoError(t, err)
	res, err := f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	require.NoError(t, err)

	b, err := f.week.Block(res.Committed)
	require.NoError(t, err)
	assert.Equal(t, "write report", b.Title)
	assert.Equal(t, model.Clock(14, 0, 0), b.Start, "snapped to the nearest 15 minutes")
	assert.Equal(t, todo.ID, b.TodoID)

	got, err := f.week.Todo(todo.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.BlockID)
}

func TestMoveExistingBlockKeepsGrabOffset(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Monday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	// Grab the block 20 minutes below its top, then drop it on Wednesday
	// with the pointer at 13:20.
	x, y := f.at(model.Monday, 9, 20)
	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, TargetBlockID: id})
	require.NoError(t, err)

	x2, y2 := f.at(model.Wednesday, 13, 20)
	res, err := f.engine.Handle(Gesture{Kind: KindMove, X: x2, Y: y2})
	require.NoError(t, err)
	require.NotNil(t, res.Preview)
	assert.Equal(t, Preview{Day: model.Wednesday, Start: model.Clock(13, 0, 0), End: model.Clock(14, 0, 0)}, *res.Preview)

	res, err = f.engine.Handle(Gesture{Kind: KindEnd, X: x2, Y: y2})
	require.NoError(t, err)
	assert.Equal(t, id, res.Committed)

	assert.Empty(t, f.week.Blocks(model.Monday))
	moved, err := f.week.Block(id)
	require.NoError(t, err)
	assert.Equal(t, model.Wednesday, moved.Day)
	assert.Equal(t, model.Clock(13, 0, 0), moved.Start)
}

func TestMoveOfDeletedBlockFails(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Tuesday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	x, y := f.at(model.Tuesday, 9, 0)
	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, TargetBlockID: id})
	require.NoError(t, err)
	require.NoError(t, f.week.DeleteBlock(id))
	before := f.week.Snapshot()

	x, y = f.at(model.Tuesday, 14, 0)
	res, err := f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, res.Committed)

	_, err = f.week.Block(id)
	assert.ErrorIs(t, err, model.ErrNotFound, "deleted block stays deleted")
	assert.Empty(t, cmp.Diff(before, f.week.Snapshot()))
}

func TestResizeOfDeletedBlockFails(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Friday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	_, err := f.engine.Handle(Gesture{Kind: KindResizeStart, TargetBlockID: id})
	require.NoError(t, err)
	require.NoError(t, f.week.DeleteBlock(id))

	x, y := f.at(model.Friday, 11, 0)
	_, err = f.engine.Handle(Gesture{Kind: KindResizeEnd, X: x, Y: y})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, f.week.Blocks(model.Friday))
}

func TestMoveBlockStartingAboveGridKeepsGrabOffset(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Monday, model.Clock(5, 0, 0), model.Clock(7, 0, 0))

	// Only 06:00-07:00 is visible; grab it at 06:30, 90 minutes below the
	// real start.
	x, y := f.at(model.Monday, 6, 30)
	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, TargetBlockID: id})
	require.NoError(t, err)

	x, y = f.at(model.Tuesday, 9, 30)
	res, err := f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	require.NoError(t, err)
	assert.Equal(t, Preview{Day: model.Tuesday, Start: model.Clock(8, 0, 0), End: model.Clock(10, 0, 0)}, *res.Preview)
}

func TestMoveOverlappingItsOwnOldPosition(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Monday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	x, y := f.at(model.Monday, 9, 0)
	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y, TargetBlockID: id})
	require.NoError(t, err)
	x, y = f.at(model.Monday, 9, 30)
	_, err = f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	require.NoError(t, err)

	b, err := f.week.Block(id)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(9, 30, 0), b.Start)
	assert.Len(t, f.week.Blocks(model.Monday), 1)
}

func TestDragIsClampedToVisibleHours(t *testing.T) {
	f := newFixture(t)
	x, y := f.at(model.Saturday, 23, 45)

	_, err := f.engine.Handle(Gesture{Kind: KindStart, X: x, Y: y})
	require.NoError(t, err)
	res, err := f.engine.Handle(Gesture{Kind: KindEnd, X: x, Y: y})
	require.NoError(t, err)

	b, err := f.week.Block(res.Committed)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(23, 0, 0), b.Start)
	assert.Equal(t, model.DayEnd, b.End)
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Friday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))

	_, err := f.engine.Handle(Gesture{Kind: KindResizeStart, TargetBlockID: id})
	require.NoError(t, err)
	x, y := f.at(model.Friday, 11, 0)
	res, err := f.engine.Handle(Gesture{Kind: KindResizeEnd, X: x, Y: y})
	require.NoError(t, err)
	assert.Equal(t, id, res.Committed)

	b, err := f.week.Block(id)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(11, 0, 0), b.End)
}

func TestResizeToInvertedIntervalFails(t *testing.T) {
	f := newFixture(t)
	id := f.place(t, model.Friday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))
	before := f.week.Snapshot()

	_, err := f.engine.Handle(Gesture{Kind: KindResizeStart, TargetBlockID: id})
	require.NoError(t, err)
	x, y := f.at(model.Friday, 8, 0)
	_, err = f.engine.Handle(Gesture{Kind: KindResizeEnd, X: x, Y: y})
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Empty(t, cmp.Diff(before, f.week.Snapshot()))
}

func TestImportedBlocksNeitherBlockNorMove(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.week.ReplaceImported([]model.Block{{
		ID: "ics-1", Day: model.Monday, Start: model.Clock(9, 0, 0), End: model.Clock(12, 0, 0),
		Source: model.SourceImported, Title: "conference",
	}}))

	id := f.place(t, model.Monday, model.Clock(10, 0, 0), model.Clock(11, 0, 0))
	b, err := f.week.Block(id)
	require.NoError(t, err)
	assert.Equal(t, model.Clock(10, 0, 0), b.Start, "imported blocks do not push user blocks")

	_, err = f.engine.Handle(Gesture{Kind: KindStart, TargetBlockID: "ics-1"})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.engine.Handle(Gesture{Kind: KindResizeStart, TargetBlockID: "ics-1"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestGestureOrdering(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Handle(Gesture{Kind: KindMove})
	assert.ErrorIs(t, err, ErrNoGesture)
	_, err = f.engine.Handle(Gesture{Kind: KindEnd})
	assert.ErrorIs(t, err, ErrNoGesture)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.engine.Handle(Gesture{Kind: KindStart})
	require.NoError(t, err)
	_, err = f.engine.Handle(Gesture{Kind: KindResizeEnd})
	assert.ErrorIs(t, err, ErrNoGesture, "resize end does not finish a drag")

	f.engine.Cancel()
	_, err = f.engine.Handle(Gesture{Kind: KindEnd})
	assert.ErrorIs(t, err, ErrNoGesture)

	_, err = f.engine.Handle(Gesture{Kind: "wiggle"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.engine.Handle(Gesture{Kind: KindStart, TargetBlockID: "missing"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNoRoomLeavesWeekUnchanged(t *testing.T) {
	f := newFixture(t)
	f.place(t, model.Sunday, model.Clock(22, 0, 0), model.Clock(24, 0, 0))
	before := f.week.Snapshot()

	_, err := f.engine.Place(model.Block{Day: model.Sunday, Start: model.Clock(22, 30, 0), End: model.Clock(23, 30, 0)})
	assert.True(t, errors.Is(err, model.ErrPlacement))
	assert.Empty(t, cmp.Diff(before, f.week.Snapshot()))
}

func TestZoomDoesNotChangeStoredBlocks(t *testing.T) {
	f := newFixture(t)
	f.place(t, model.Monday, model.Clock(9, 0, 0), model.Clock(10, 0, 0))
	f.place(t, model.Thursday, model.Clock(13, 15, 0), model.Clock(15, 0, 0))
	before := f.week.Snapshot()

	f.grid.SetZoom(2.5)
	f.grid.ZoomOut()
	f.grid.SetZoom(1)

	assert.Empty(t, cmp.Diff(before, f.week.Snapshot()))
}

func TestRandomPlacementsNeverOverlap(t *testing.T) {
	f := newFixture(t)
	rnd := rand.New(rand.NewSource(42))
	var ids []model.BlockID

	for i := 0; i < 400; i++ {
		switch op := rnd.Intn(10); {
		case op < 6 || len(ids) == 0:
			day := model.Day(rnd.Intn(7))
			start := model.TimeOfDay(rnd.Intn(96)) * 15 * model.Minute
			dur := model.TimeOfDay(1+rnd.Intn(12)) * 15 * model.Minute
			if id, err := f.engine.Place(model.Block{Day: day, Start: start, End: start + dur}); err == nil {
				ids = append(ids, id)
			}
		case op < 8:
			id := ids[rnd.Intn(len(ids))]
			b, err := f.week.Block(id)
			if err != nil {
				continue
			}
			b.Day = model.Day(rnd.Intn(7))
			b.Start = model.TimeOfDay(rnd.Intn(90)) * 15 * model.Minute
			b.End = b.Start + 30*model.Minute
			_, _ = f.engine.Place(b)
		default:
			i := rnd.Intn(len(ids))
			_ = f.week.DeleteBlock(ids[i])
			ids = append(ids[:i], ids[i+1:]...)
		}

		for d := model.Monday; d <= model.Sunday; d++ {
			bs := f.week.Blocks(d)
			for j := 1; j < len(bs); j++ {
				if bs[j-1].Overlaps(bs[j]) {
					t.Fatalf("step %d: %s overlap %v and %v", i, d, bs[j-1], bs[j])
				}
			}
		}
	}
}
