// Package grid converts between grid positions (day column, time of day)
// and pixel coordinates at the current zoom level.
//
// The model owns one piece of mutable state, the pixels-per-hour scale.
// It never sees scheduled blocks; zoom changes only affect derived pixels.
package grid

import (
	"math"

	"weekplan/internal/config"
	"weekplan/internal/model"
)

// Model is not safe for concurrent use.
type Model struct {
	start model.TimeOfDay
	end   model.TimeOfDay
	snap  model.TimeOfDay

	columnWidth float64
	originX     float64
	originY     float64

	basePPH  float64
	minPPH   float64
	maxPPH   float64
	zoomStep float64

	pph float64
}

// New builds a Model at zoom factor 1.0. cfg is expected to be normalized.
func New(cfg config.GridConfig) *Model {
	m := &Model{
		start:       model.TimeOfDay(cfg.StartHour) * model.Hour,
		end:         model.TimeOfDay(cfg.EndHour) * model.Hour,
		snap:        model.TimeOfDay(cfg.SnapMinutes) * model.Minute,
		columnWidth: cfg.ColumnWidth,
		originX:     cfg.OriginX,
		originY:     cfg.OriginY,
		basePPH:     cfg.BasePixelsPerHour,
		minPPH:      cfg.MinPixelsPerHour,
		maxPPH:      cfg.MaxPixelsPerHour,
		zoomStep:    cfg.ZoomStep,
	}
	m.pph = m.clampPPH(m.basePPH)
	return m
}

// GridStart / GridEnd are the first and last visible times of day.
func (m *Model) GridStart() model.TimeOfDay { return m.start }
func (m *Model) GridEnd() model.TimeOfDay   { return m.end }

// Increment is the snapping unit.
func (m *Model) Increment() model.TimeOfDay { return m.snap }

func (m *Model) ColumnWidth() float64 { return m.columnWidth }

// PixelsPerHour is the current zoom scalar.
func (m *Model) PixelsPerHour() float64 { return m.pph }

// Zoom is the current scale relative to the base scale.
func (m *Model) Zoom() float64 { return m.pph / m.basePPH }

// SetZoom sets pixels-per-hour to base*factor, clamped to the configured
// range. Calling it twice with the same factor is a no-op the second time.
func (m *Model) SetZoom(factor float64) {
	m.pph = m.clampPPH(m.basePPH * factor)
}

// ZoomIn / ZoomOut step the zoom factor by the configured increment.
func (m *Model) ZoomIn()  { m.SetZoom(m.Zoom() + m.zoomStep) }
func (m *Model) ZoomOut() { m.SetZoom(m.Zoom() - m.zoomStep) }

func (m *Model) clampPPH(v float64) float64 {
	if math.IsNaN(v) {
		return m.basePPH
	}
	return math.Max(m.minPPH, math.Min(m.maxPPH, v))
}

// TimeToCoordinate returns the top-left pixel of t in day's column. Day and
// time are clamped to the grid.
func (m *Model) TimeToCoordinate(day model.Day, t model.TimeOfDay) (x, y float64) {
	day = clampDay(day)
	t = m.clampTime(t)
	return m.originX + float64(day)*m.columnWidth, m.OffsetY(t)
}

// OffsetY is the pixel row of t without clamping to the visible hours;
// times before the grid start land above OriginY.
func (m *Model) OffsetY(t model.TimeOfDay) float64 {
	return m.originY + float64(t-m.start)*m.pph/float64(model.Hour)
}

// CoordinateToTime maps a pixel back to a day column and a time of day
// snapped to the nearest increment (halfway rounds up). This is the only
// place pointer positions are snapped.
func (m *Model) CoordinateToTime(x, y float64) (model.Day, model.TimeOfDay) {
	col := math.Floor((x - m.originX) / m.columnWidth)
	if math.IsNaN(col) {
		col = 0
	}
	day := clampDay(model.Day(math.Max(-1, math.Min(model.DaysPerWeek, col))))

	// Round to whole seconds first so float noise cannot flip a tie.
	secs := math.Round((y - m.originY) * float64(model.Hour) / m.pph)
	if math.IsNaN(secs) {
		secs = 0
	}
	span := float64(m.end - m.start)
	secs = math.Max(0, math.Min(span, secs))

	return day, m.clampTime(m.start + m.Snap(model.TimeOfDay(secs)))
}

// Snap rounds t to the nearest increment, halfway up, never below zero.
func (m *Model) Snap(t model.TimeOfDay) model.TimeOfDay {
	if t <= 0 {
		return 0
	}
	r := t % m.snap
	if 2*r >= m.snap {
		return t + m.snap - r
	}
	return t - r
}

// GridHeight is the pixel height of the visible day at the current zoom.
func (m *Model) GridHeight() float64 {
	return float64(m.end-m.start) * m.pph / float64(model.Hour)
}

// Rect is a derived on-screen rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BlockRect is where b is drawn at the current zoom. Portions outside the
// visible hours are cut off.
func (m *Model) BlockRect(b model.Block) Rect {
	x, top := m.TimeToCoordinate(b.Day, b.Start)
	_, bottom := m.TimeToCoordinate(b.Day, b.End)
	return Rect{X: x, Y: top, Width: m.columnWidth, Height: bottom - top}
}

// InBounds reports whether [start, end) lies inside the visible hours.
func (m *Model) InBounds(start, end model.TimeOfDay) bool {
	return start >= m.start && end <= m.end && end > start
}

func (m *Model) clampTime(t model.TimeOfDay) model.TimeOfDay {
	if t < m.start {
		return m.start
	}
	if t > m.end {
		return m.end
	}
	return t
}

func clampDay(d model.Day) model.Day {
	if d < model.Monday {
		return model.Monday
	}
	if d > model.Sunday {
		return model.Sunday
	}
	return d
}
