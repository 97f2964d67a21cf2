// Package week holds the planner's in-memory state: seven days of to-do
// lists and scheduled blocks. Every mutation is all-or-nothing; a failed
// call leaves the week exactly as it was.
package week

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	appLog "weekplan/internal/log"
	"weekplan/internal/model"
)

// Policy validates a user block against the other user blocks already on
// its day and returns the geometry that should be stored. It must not
// mutate others.
type Policy interface {
	Resolve(candidate model.Block, others []model.Block) (model.Block, error)
}

// Completion is emitted when a to-do transitions to done.
type Completion struct {
	TodoID model.TodoID
}

type day struct {
	todos  []*model.ToDoItem
	blocks map[model.BlockID]*model.Block
}

// Week is the single owner of all to-dos and blocks. It is not safe for
// concurrent use; callers serialize access.
type Week struct {
	days   [model.DaysPerWeek]day
	policy Policy

	todoDay  map[model.TodoID]model.Day
	blockDay map[model.BlockID]model.Day

	listeners []func(Completion)

	newID func() string
}

// New returns an empty week that delegates placement rules to policy.
func New(policy Policy) *Week {
	w := &Week{
		policy:   policy,
		todoDay:  make(map[model.TodoID]model.Day),
		blockDay: make(map[model.BlockID]model.Day),
		newID:    uuid.NewString,
	}
	for i := range w.days {
		w.days[i].blocks = make(map[model.BlockID]*model.Block)
	}
	return w
}

// OnComplete registers fn to be called after a to-do becomes done.
func (w *Week) OnComplete(fn func(Completion)) {
	w.listeners = append(w.listeners, fn)
}

// AddTodo appends a to-do to day's list.
func (w *Week) AddTodo(d model.Day, text string) (model.ToDoItem, error) {
	if !d.Valid() {
		return model.ToDoItem{}, model.Invalidf("day", "%d is outside Monday..Sunday", int(d))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ToDoItem{}, model.Invalidf("text", "must not be empty")
	}

	item := &model.ToDoItem{ID: model.TodoID(w.newID()), Day: d, Text: text}
	w.days[d].todos = append(w.days[d].todos, item)
	w.todoDay[item.ID] = d

	appLog.Debug("todo added", "id", item.ID, "day", d)
	return *item, nil
}

// EditTodo replaces a to-do's label.
func (w *Week) EditTodo(id model.TodoID, text string) error {
	item, err := w.todo(id)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Invalidf("text", "must not be empty")
	}
	item.Text = text
	return nil
}

// ToggleComplete flips the done flag and returns the new value. Listeners
// are notified only on the false -> true transition.
func (w *Week) ToggleComplete(id model.TodoID) (bool, error) {
	item, err := w.todo(id)
	if err != nil {
		return false, err
	}
	item.Done = !item.Done
	if item.Done {
		ev := Completion{TodoID: id}
		for _, fn := range w.listeners {
			fn(ev)
		}
	}
	return item.Done, nil
}

// DeleteTodo removes the to-do and the block scheduled from it, if any.
func (w *Week) DeleteTodo(id model.TodoID) error {
	item, err := w.todo(id)
	if err != nil {
		return err
	}
	if item.BlockID != "" {
		w.removeBlock(item.BlockID)
	}

	d := w.todoDay[id]
	list := w.days[d].todos
	for i, t := range list {
		if t.ID == id {
			w.days[d].todos = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	delete(w.todoDay, id)

	appLog.Debug("todo deleted", "id", id, "day", d)
	return nil
}

// DeleteBlock removes a block of either source. A linked to-do stays and
// simply loses its reference.
func (w *Week) DeleteBlock(id model.BlockID) error {
	if _, ok := w.blockDay[id]; !ok {
		return &model.NotFoundError{Kind: "block", ID: string(id)}
	}
	w.removeBlock(id)
	appLog.Debug("block deleted", "id", id)
	return nil
}

// CommitBlock installs a user block, or replaces the stored geometry of the
// block with the same ID. The policy decides the final geometry; an empty ID
// gets a fresh one and an unknown ID is a NotFoundError. If the candidate schedules a to-do that already owns a
// different block, that block is replaced.
func (w *Week) CommitBlock(candidate model.Block) (model.BlockID, error) {
	if candidate.Source == "" {
		candidate.Source = model.SourceUser
	}
	if candidate.Source != model.SourceUser {
		return "", model.Invalidf("source", "only user blocks can be committed, got %q", candidate.Source)
	}
	if !candidate.Color.Valid() {
		return "", model.Invalidf("color", "unknown colour %d", int(candidate.Color))
	}

	// New blocks come in without an ID; a set ID must name a stored block.
	var prior *model.Block
	if candidate.ID != "" {
		d, ok := w.blockDay[candidate.ID]
		if !ok {
			return "", &model.NotFoundError{Kind: "block", ID: string(candidate.ID)}
		}
		prior = w.days[d].blocks[candidate.ID]
		if prior.Imported() {
			return "", model.Invalidf("id", "imported block %s is read-only", candidate.ID)
		}
	}

	// A moved block keeps its to-do link unless the caller sets a new one.
	if prior != nil && candidate.TodoID == "" {
		candidate.TodoID = prior.TodoID
	}

	var displaced model.BlockID
	if candidate.TodoID != "" {
		item, err := w.todo(candidate.TodoID)
		if err != nil {
			return "", err
		}
		if item.BlockID != "" && item.BlockID != candidate.ID {
			displaced = item.BlockID
		}
	}

	if !candidate.Day.Valid() {
		return "", model.Invalidf("day", "%d is outside Monday..Sunday", int(candidate.Day))
	}
	others := w.userBlocks(candidate.Day, candidate.ID, displaced)

	resolved, err := w.policy.Resolve(candidate, others)
	if err != nil {
		return "", err
	}

	// Validation done; from here on nothing can fail.
	if resolved.ID == "" {
		resolved.ID = model.BlockID(w.newID())
	}
	if prior != nil {
		if prior.TodoID != "" && prior.TodoID != resolved.TodoID {
			w.unlinkTodo(prior.TodoID, prior.ID)
		}
		w.detachBlock(prior.ID)
	}
	if displaced != "" {
		w.removeBlock(displaced)
	}

	stored := resolved
	w.days[stored.Day].blocks[stored.ID] = &stored
	w.blockDay[stored.ID] = stored.Day
	if stored.TodoID != "" {
		w.todoByID(stored.TodoID).BlockID = stored.ID
	}

	appLog.Debug("block committed",
		"id", stored.ID,
		"day", stored.Day,
		"start", stored.Start,
		"end", stored.End,
		"moved", prior != nil,
	)
	return stored.ID, nil
}

// SetBlockColor recolours a user block.
func (w *Week) SetBlockColor(id model.BlockID, c model.Color) error {
	d, ok := w.blockDay[id]
	if !ok {
		return &model.NotFoundError{Kind: "block", ID: string(id)}
	}
	b := w.days[d].blocks[id]
	if b.Imported() {
		return model.Invalidf("id", "imported block %s is read-only", id)
	}
	if !c.Valid() {
		return model.Invalidf("color", "unknown colour %d", int(c))
	}
	b.Color = c
	return nil
}

// ReplaceImported swaps every imported block for blocks in one step. The
// new set is validated first; on error the week is untouched.
func (w *Week) ReplaceImported(blocks []model.Block) error {
	seen := make(map[model.BlockID]struct{}, len(blocks))
	for _, b := range blocks {
		if err := validateImported(b); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return model.Invalidf("id", "duplicate imported block %s", b.ID)
		}
		seen[b.ID] = struct{}{}
		if d, ok := w.blockDay[b.ID]; ok && !w.days[d].blocks[b.ID].Imported() {
			return model.Invalidf("id", "block %s already exists as a user block", b.ID)
		}
	}

	removed := 0
	for i := range w.days {
		for id, b := range w.days[i].blocks {
			if b.Imported() {
				delete(w.days[i].blocks, id)
				delete(w.blockDay, id)
				removed++
			}
		}
	}
	for _, b := range blocks {
		stored := b
		w.days[stored.Day].blocks[stored.ID] = &stored
		w.blockDay[stored.ID] = stored.Day
	}

	appLog.Debug("imported blocks replaced", "removed", removed, "installed", len(blocks))
	return nil
}

func validateImported(b model.Block) error {
	if b.ID == "" {
		return model.Invalidf("id", "imported block needs an id")
	}
	if b.Source != model.SourceImported {
		return model.Invalidf("source", "block %s is not tagged imported", b.ID)
	}
	if !b.Day.Valid() {
		return model.Invalidf("day", "block %s: %d is outside Monday..Sunday", b.ID, int(b.Day))
	}
	if b.Start < 0 || b.End > model.DayEnd || b.End <= b.Start {
		return model.Invalidf("interval", "block %s: %s-%s is not a forward interval within one day", b.ID, b.Start, b.End)
	}
	if b.TodoID != "" {
		return model.Invalidf("todo_id", "imported block %s cannot link a to-do", b.ID)
	}
	if !b.Color.Valid() {
		return model.Invalidf("color", "unknown colour %d", int(b.Color))
	}
	return nil
}

// Todo returns a copy of the to-do with id.
func (w *Week) Todo(id model.TodoID) (model.ToDoItem, error) {
	item, err := w.todo(id)
	if err != nil {
		return model.ToDoItem{}, err
	}
	return *item, nil
}

// Todos returns day's list in display order.
func (w *Week) Todos(d model.Day) []model.ToDoItem {
	if !d.Valid() {
		return nil
	}
	out := make([]model.ToDoItem, 0, len(w.days[d].todos))
	for _, t := range w.days[d].todos {
		out = append(out, *t)
	}
	return out
}

// Block returns a copy of the block with id.
func (w *Week) Block(id model.BlockID) (model.Block, error) {
	d, ok := w.blockDay[id]
	if !ok {
		return model.Block{}, &model.NotFoundError{Kind: "block", ID: string(id)}
	}
	return *w.days[d].blocks[id], nil
}

// Blocks returns day's blocks ordered by start, then end, then id.
func (w *Week) Blocks(d model.Day) []model.Block {
	if !d.Valid() {
		return nil
	}
	out := make([]model.Block, 0, len(w.days[d].blocks))
	for _, b := range w.days[d].blocks {
		out = append(out, *b)
	}
	SortBlocks(out)
	return out
}

// Snapshot returns a deep copy of the week.
func (w *Week) Snapshot() model.WeekSnapshot {
	var s model.WeekSnapshot
	for d := model.Monday; d <= model.Sunday; d++ {
		s.Days[d] = model.DaySnapshot{
			Day:    d,
			Todos:  w.Todos(d),
			Blocks: w.Blocks(d),
		}
	}
	return s
}

// SortBlocks orders blocks by start, end, then id.
func SortBlocks(bs []model.Block) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Start != bs[j].Start {
			return bs[i].Start < bs[j].Start
		}
		if bs[i].End != bs[j].End {
			return bs[i].End < bs[j].End
		}
		return bs[i].ID < bs[j].ID
	})
}

func (w *Week) todo(id model.TodoID) (*model.ToDoItem, error) {
	if item := w.todoByID(id); item != nil {
		return item, nil
	}
	return nil, &model.NotFoundError{Kind: "todo", ID: string(id)}
}

func (w *Week) todoByID(id model.TodoID) *model.ToDoItem {
	d, ok := w.todoDay[id]
	if !ok {
		return nil
	}
	for _, t := range w.days[d].todos {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// userBlocks lists user blocks on d other than the excluded ids.
func (w *Week) userBlocks(d model.Day, exclude ...model.BlockID) []model.Block {
	out := make([]model.Block, 0, len(w.days[d].blocks))
next:
	for id, b := range w.days[d].blocks {
		if b.Imported() {
			continue
		}
		for _, ex := range exclude {
			if ex != "" && ex == id {
				continue next
			}
		}
		out = append(out, *b)
	}
	SortBlocks(out)
	return out
}

// removeBlock drops the block and clears the to-do's weak reference.
func (w *Week) removeBlock(id model.BlockID) {
	d, ok := w.blockDay[id]
	if !ok {
		return
	}
	if todoID := w.days[d].blocks[id].TodoID; todoID != "" {
		w.unlinkTodo(todoID, id)
	}
	w.detachBlock(id)
}

func (w *Week) detachBlock(id model.BlockID) {
	d := w.blockDay[id]
	delete(w.days[d].blocks, id)
	delete(w.blockDay, id)
}

func (w *Week) unlinkTodo(todoID model.TodoID, blockID model.BlockID) {
	if item := w.todoByID(todoID); item != nil && item.BlockID == blockID {
		item.BlockID = ""
	}
}
