package app

import (
	"weekplan/internal/grid"
	"weekplan/internal/model"
)

// View is the week as a client draws it.
type View struct {
	WeekStart string `json:"week_start"`
	Label     string `json:"label"`

	Zoom          float64 `json:"zoom"`
	PixelsPerHour float64 `json:"pixels_per_hour"`
	ColumnWidth   float64 `json:"column_width"`
	GridHeight    float64 `json:"grid_height"`

	Hours []HourMark `json:"hours"`
	Days  []DayView  `json:"days"`
}

// HourMark is one labelled line of the time gutter.
type HourMark struct {
	Label string  `json:"label"`
	Y     float64 `json:"y"`
}

// DayView is one column.
type DayView struct {
	Day    model.Day        `json:"day"`
	Name   string           `json:"name"`
	Date   string           `json:"date"`
	X      float64          `json:"x"`
	Todos  []model.ToDoItem `json:"todos"`
	Blocks []BlockView      `json:"blocks"`
}

// BlockView is a block with its rectangle at the current zoom. Visible is
// false for blocks wholly outside the visible hours.
type BlockView struct {
	model.Block
	Rect    grid.Rect `json:"rect"`
	Visible bool      `json:"visible"`
}

func buildView(win model.Window, g *grid.Model, snap model.WeekSnapshot) View {
	last := win.DayStart(model.Sunday)
	v := View{
		WeekStart:     win.Start.Format("2006-01-02"),
		Label:         "Week of " + win.Start.Format("02 Jan 2006") + " - " + last.Format("02 Jan 2006"),
		Zoom:          g.Zoom(),
		PixelsPerHour: g.PixelsPerHour(),
		ColumnWidth:   g.ColumnWidth(),
		GridHeight:    g.GridHeight(),
	}

	for t := g.GridStart(); t <= g.GridEnd(); t += model.Hour {
		_, y := g.TimeToCoordinate(model.Monday, t)
		v.Hours = append(v.Hours, HourMark{Label: t.String(), Y: y})
	}

	for _, ds := range snap.Days {
		x, _ := g.TimeToCoordinate(ds.Day, g.GridStart())
		dv := DayView{
			Day:    ds.Day,
			Name:   ds.Day.String(),
			Date:   win.DayStart(ds.Day).Format("2006-01-02"),
			X:      x,
			Todos:  ds.Todos,
			Blocks: make([]BlockView, 0, len(ds.Blocks)),
		}
		for _, b := range ds.Blocks {
			r := g.BlockRect(b)
			dv.Blocks = append(dv.Blocks, BlockView{
				Block:   b,
				Rect:    r,
				Visible: r.Height > 0,
			})
		}
		v.Days = append(v.Days, dv)
	}
	return v
}
