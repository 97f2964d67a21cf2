// Package importer turns decoded calendar records into the read-only
// imported blocks of the displayed week.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"weekplan/internal/grid"
	"weekplan/internal/ics"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
	"weekplan/internal/week"
)

// Decoder loads the records of one calendar source (file path or URL).
type Decoder interface {
	Load(ctx context.Context, location string) ([]ics.Record, error)
}

// Options tunes record selection.
type Options struct {
	// ShowAllDay keeps all-day records as whole-day blocks.
	ShowAllDay bool
	// MaxOccurrences caps one recurring series inside the week.
	MaxOccurrences int
	// Lock, if set, is held by ImportSources around the swap into the week
	// but not while sources are fetched and decoded.
	Lock sync.Locker
}

// Summary describes the outcome of one import.
type Summary struct {
	Sources []string `json:"sources"`

	Decoded    int `json:"decoded"`
	Expanded   int `json:"expanded"`
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
	Clipped    int `json:"clipped"`
	Duplicates int `json:"duplicates"`
	AllDay     int `json:"all_day_skipped"`
	// OffGrid counts kept blocks that fall partly outside the visible hours.
	OffGrid int `json:"off_grid"`

	Truncated []string `json:"truncated,omitempty"`
}

// Pipeline replaces the imported blocks of a week from calendar sources.
type Pipeline struct {
	week    *week.Week
	grid    *grid.Model
	decoder Decoder
	opts    Options
}

// New builds a Pipeline writing into w. g is used only to report blocks that
// fall outside the visible hours and may be nil.
func New(w *week.Week, g *grid.Model, dec Decoder, opts Options) *Pipeline {
	return &Pipeline{week: w, grid: g, decoder: dec, opts: opts}
}

// ImportSources decodes every source and swaps their combined events into the
// week in one step. Any failing source fails the whole import and leaves the
// week unchanged.
func (p *Pipeline) ImportSources(ctx context.Context, paths []string, window model.Window) (Summary, error) {
	all, err := p.Collect(ctx, paths)
	if err != nil {
		return Summary{Sources: paths}, err
	}
	if p.opts.Lock != nil {
		p.opts.Lock.Lock()
		defer p.opts.Lock.Unlock()
	}
	sum, err := p.ImportRecords(all, window, strings.Join(paths, ","))
	sum.Sources = paths
	return sum, err
}

// Collect decodes every source without touching the week. Errors are
// *model.ImportError.
func (p *Pipeline) Collect(ctx context.Context, paths []string) ([]ics.Record, error) {
	if len(paths) == 0 {
		return nil, &model.ImportError{Reason: model.ImportEmpty, Err: errors.New("no sources given")}
	}
	if p.decoder == nil {
		return nil, &model.ImportError{Reason: model.ImportDecode, SourcePath: strings.Join(paths, ","), Err: errors.New("no decoder configured")}
	}

	var all []ics.Record
	for _, path := range paths {
		recs, err := p.decoder.Load(ctx, path)
		if err != nil {
			reason := model.ImportDecode
			if errors.Is(err, ics.ErrEmptyCalendar) {
				reason = model.ImportEmpty
			}
			appLog.Error("ics import: load failed", err, "source", path)
			return nil, &model.ImportError{Reason: reason, SourcePath: path, Err: err}
		}
		all = append(all, recs...)
	}
	return all, nil
}

// ImportRecords runs the already decoded records through the pipeline.
func (p *Pipeline) ImportRecords(records []ics.Record, window model.Window, source string) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, &model.ImportError{Reason: model.ImportEmpty, SourcePath: source}
	}

	blocks, sum, err := p.Build(records, window)
	if err != nil {
		return sum, &model.ImportError{Reason: model.ImportDecode, SourcePath: source, Err: err}
	}
	if len(blocks) == 0 {
		appLog.Info("ics import: nothing in window", "source", source, "week", window.Start.Format("2006-01-02"), "decoded", sum.Decoded)
		return sum, &model.ImportError{Reason: model.ImportNothingInWindow, SourcePath: source}
	}

	if err := p.week.ReplaceImported(blocks); err != nil {
		return sum, &model.ImportError{Reason: model.ImportInvalid, SourcePath: source, Err: err}
	}

	appLog.Info("ics import completed",
		"source", source,
		"week", window.Start.Format("2006-01-02"),
		"decoded", sum.Decoded,
		"kept", sum.Kept,
		"dropped", sum.Dropped,
		"clipped", sum.Clipped,
	)
	return sum, nil
}

// Build converts records into imported blocks for window without touching
// the week. Blocks come back ordered by day, start and id.
func (p *Pipeline) Build(records []ics.Record, window model.Window) ([]model.Block, Summary, error) {
	sum := Summary{Decoded: len(records)}
	loc := window.Location()

	exp, err := ics.Expand(records, ics.ExpandConfig{
		DisplayLocation:        loc,
		RangeStart:             window.Start,
		RangeEnd:               window.End(),
		MaxOccurrencesPerEvent: p.opts.MaxOccurrences,
	})
	if err != nil {
		return nil, sum, err
	}
	sum.Expanded = len(exp.Records)
	sum.Truncated = exp.TruncatedEvents

	seen := make(map[model.BlockID]struct{}, len(exp.Records))
	blocks := make([]model.Block, 0, len(exp.Records))
	for _, rec := range exp.Records {
		if rec.AllDay && !p.opts.ShowAllDay {
			sum.AllDay++
			continue
		}

		start := rec.Instant(rec.Start, loc).In(loc)
		end := rec.Instant(rec.End, loc).In(loc)

		day, from, ok := window.Locate(start)
		if !ok {
			sum.Dropped++
			continue
		}

		to := model.ClockOf(end)
		nextMidnight := window.DayStart(day).AddDate(0, 0, 1)
		switch {
		case end.After(nextMidnight):
			// Only the drawn block is cut; the id below still hashes the
			// event's real end.
			to = model.LastSecond
			sum.Clipped++
		case end.Equal(nextMidnight):
			to = model.DayEnd
		}
		if to <= from {
			sum.Dropped++
			continue
		}

		id := blockID(rec.Title, start, end)
		if _, dup := seen[id]; dup {
			sum.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		b := model.Block{
			ID:     id,
			Day:    day,
			Start:  from,
			End:    to,
			Title:  rec.Title,
			Color:  model.DefaultColor,
			Source: model.SourceImported,
		}
		if p.grid != nil && !p.grid.InBounds(b.Start, b.End) {
			sum.OffGrid++
			appLog.Debug("imported block outside visible hours", "title", b.Title, "day", b.Day, "start", b.Start, "end", b.End)
		}
		blocks = append(blocks, b)
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Day != blocks[j].Day {
			return blocks[i].Day < blocks[j].Day
		}
		if blocks[i].Start != blocks[j].Start {
			return blocks[i].Start < blocks[j].Start
		}
		return blocks[i].ID < blocks[j].ID
	})
	sum.Kept = len(blocks)
	return blocks, sum, nil
}

// blockID is stable across imports of the same event.
func blockID(title string, start, end time.Time) model.BlockID {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(start.Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(end.Format(time.RFC3339)))
	return model.BlockID("ics-" + hex.EncodeToString(h.Sum(nil))[:16])
}
