// Package app wires the planner core together and serializes access to it
// for the HTTP server, the refresher and the CLI.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"weekplan/internal/config"
	"weekplan/internal/grid"
	"weekplan/internal/ics"
	"weekplan/internal/importer"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
	"weekplan/internal/placement"
	"weekplan/internal/telemetry"
	"weekplan/internal/week"
)

// Import triggers, used as a metrics label.
const (
	TriggerManual  = "manual"
	TriggerRefresh = "refresh"
	TriggerCLI     = "cli"
)

// Planner owns one displayed week. All methods are safe for concurrent use;
// mutations are applied one at a time.
type Planner struct {
	mu sync.Mutex
	// importMu keeps two imports from fetching the same sources at once
	// without holding mu across network I/O.
	importMu sync.Mutex

	cfg    *config.Config
	window model.Window

	grid     *grid.Model
	week     *week.Week
	engine   *placement.Engine
	pipeline *importer.Pipeline

	celebrate bool
}

type options struct {
	now     func() time.Time
	decoder importer.Decoder
}

// Option customizes New.
type Option func(*options)

// WithClock fixes the clock used to pick the displayed week.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDecoder replaces the default file/URL calendar loader.
func WithDecoder(d importer.Decoder) Option {
	return func(o *options) { o.decoder = d }
}

// New builds a Planner for the week containing today in cfg's timezone.
// cfg is normalized in place.
func New(cfg *config.Config, opts ...Option) (*Planner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	if o.decoder == nil {
		o.decoder = ics.NewLoader(ics.NewFetcher(cfg.CacheDir))
	}

	rules := placement.NewRules(cfg.Grid)
	g := grid.New(cfg.Grid)
	w := week.New(rules)
	defaultDuration := model.TimeOfDay(cfg.Grid.DefaultBlockMinutes) * model.Minute

	p := &Planner{
		cfg:    cfg,
		window: model.WeekOf(o.now().In(loc)),
		grid:   g,
		week:   w,
		engine: placement.NewEngine(g, w, rules, defaultDuration),
	}
	p.pipeline = importer.New(w, g, o.decoder, importer.Options{
		ShowAllDay: cfg.ShowAllDay,
		Lock:       &p.mu,
	})
	w.OnComplete(p.onComplete)
	return p, nil
}

// onComplete runs with mu held, from inside ToggleTodo.
func (p *Planner) onComplete(c week.Completion) {
	p.celebrate = true
	telemetry.RecordCompletion()
	appLog.Info("todo completed", "todo", c.TodoID)
}

// Config returns the configuration the planner was built with.
func (p *Planner) Config() *config.Config {
	return p.cfg
}

// Window returns the displayed week.
func (p *Planner) Window() model.Window {
	return p.window
}

// Snapshot returns a copy of the week.
func (p *Planner) Snapshot() model.WeekSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.week.Snapshot()
}

// View returns the week with derived pixel geometry at the current zoom.
func (p *Planner) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return buildView(p.window, p.grid, p.week.Snapshot())
}

// AddTodo appends a to-do to day.
func (p *Planner) AddTodo(day model.Day, text string) (model.ToDoItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.week.AddTodo(day, text)
}

// EditTodo changes a to-do's text.
func (p *Planner) EditTodo(id model.TodoID, text string) (model.ToDoItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.week.EditTodo(id, text); err != nil {
		return model.ToDoItem{}, err
	}
	return p.week.Todo(id)
}

// ToggleTodo flips a to-do's done flag. celebrate is true when it just
// became done.
func (p *Planner) ToggleTodo(id model.TodoID) (done, celebrate bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.celebrate = false
	done, err = p.week.ToggleComplete(id)
	if err != nil {
		return false, false, err
	}
	return done, p.celebrate, nil
}

// DeleteTodo removes a to-do and the block scheduled from it.
func (p *Planner) DeleteTodo(id model.TodoID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.week.DeleteTodo(id)
}

// PlaceBlock commits a new user block, shifting it past conflicts.
func (p *Planner) PlaceBlock(b model.Block) (model.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b.ID = ""
	return p.place(b)
}

// UpdateBlock moves or resizes an existing user block.
func (p *Planner) UpdateBlock(id model.BlockID, day model.Day, start, end model.TimeOfDay) (model.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, err := p.week.Block(id)
	if err != nil {
		return model.Block{}, err
	}
	if b.Imported() {
		return model.Block{}, model.Invalidf("id", "imported block %s is read-only", id)
	}
	b.Day, b.Start, b.End = day, start, end
	return p.place(b)
}

func (p *Planner) place(b model.Block) (model.Block, error) {
	id, err := p.engine.Place(b)
	telemetry.RecordCommit(err)
	if err != nil {
		return model.Block{}, err
	}
	stored, err := p.week.Block(id)
	if err != nil {
		return model.Block{}, err
	}
	appLog.Debug("block committed", "id", id, "day", stored.Day, "start", stored.Start, "end", stored.End)
	return stored, nil
}

// SetBlockColor recolours a user block.
func (p *Planner) SetBlockColor(id model.BlockID, c model.Color) (model.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.week.SetBlockColor(id, c); err != nil {
		return model.Block{}, err
	}
	return p.week.Block(id)
}

// DeleteBlock removes any block.
func (p *Planner) DeleteBlock(id model.BlockID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.week.DeleteBlock(id)
}

// HandleGesture feeds one pointer event to the placement engine.
func (p *Planner) HandleGesture(g placement.Gesture) (placement.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, err := p.engine.Handle(g)
	if g.Kind == placement.KindEnd || g.Kind == placement.KindResizeEnd {
		telemetry.RecordCommit(err)
	}
	return res, err
}

// ZoomTo sets the zoom factor, clamped to the configured range.
func (p *Planner) ZoomTo(factor float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid.SetZoom(factor)
	return p.grid.Zoom()
}

// ZoomStep zooms one step in (in=true) or out.
func (p *Planner) ZoomStep(in bool) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in {
		p.grid.ZoomIn()
	} else {
		p.grid.ZoomOut()
	}
	return p.grid.Zoom()
}

// Subscriptions lists the configured calendar sources.
func (p *Planner) Subscriptions() []string {
	out := make([]string, 0, len(p.cfg.ICS))
	for _, s := range p.cfg.ICS {
		if s.URL != "" {
			out = append(out, s.URL)
		}
	}
	return out
}

// AllowedSource reports whether a client may name path for a manual import:
// it is a configured subscription or a file inside one of the configured
// import directories.
func (p *Planner) AllowedSource(path string) bool {
	for _, s := range p.Subscriptions() {
		if path == s {
			return true
		}
	}
	if path == "" || ics.IsURL(path) {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range p.cfg.ImportDirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}

// Import replaces the imported blocks of the displayed week with the events
// of paths. An empty paths imports the configured subscriptions.
func (p *Planner) Import(ctx context.Context, paths []string, trigger string) (importer.Summary, error) {
	if len(paths) == 0 {
		paths = p.Subscriptions()
	}

	p.importMu.Lock()
	defer p.importMu.Unlock()

	// The window never changes after New, so it is read without mu.
	sum, err := p.pipeline.ImportSources(ctx, paths, p.window)
	telemetry.RecordImport(trigger, sum.Kept, err)
	if err != nil {
		appLog.Error("import failed", err, "trigger", trigger, "sources", len(paths))
	}
	return sum, err
}
