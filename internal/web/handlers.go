package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"weekplan/internal/app"
	"weekplan/internal/importer"
	"weekplan/internal/model"
	"weekplan/internal/placement"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return model.Invalidf("body", "%v", err)
	}
	return nil
}

func (s *Server) handleWeek(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.View())
}

type todoRequest struct {
	Day  *model.Day `json:"day"`
	Text string     `json:"text"`
}

func (s *Server) handleAddTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Day == nil {
		writeFailure(w, model.Invalidf("day", "is required"))
		return
	}
	item, err := s.planner.AddTodo(*req.Day, req.Text)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleEditTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	item, err := s.planner.EditTodo(model.TodoID(mux.Vars(r)["id"]), req.Text)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type toggleResponse struct {
	Done      bool `json:"done"`
	Celebrate bool `json:"celebrate"`
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	done, celebrate, err := s.planner.ToggleTodo(model.TodoID(mux.Vars(r)["id"]))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Done: done, Celebrate: celebrate})
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteTodo(model.TodoID(mux.Vars(r)["id"])); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// blockRequest carries times as "HH:MM".
type blockRequest struct {
	Day    *model.Day   `json:"day"`
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Title  string       `json:"title"`
	Color  *model.Color `json:"color"`
	TodoID model.TodoID `json:"todo_id"`
}

func (req blockRequest) interval() (model.Day, model.TimeOfDay, model.TimeOfDay, error) {
	if req.Day == nil {
		return 0, 0, 0, model.Invalidf("day", "is required")
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return 0, 0, 0, model.Invalidf("start", "%v", err)
	}
	end, err := model.ParseClock(req.End)
	if err != nil {
		return 0, 0, 0, model.Invalidf("end", "%v", err)
	}
	return *req.Day, start, end, nil
}

func (s *Server) handlePlaceBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	day, start, end, err := req.interval()
	if err != nil {
		writeFailure(w, err)
		return
	}
	b := model.Block{
		Day:    day,
		Start:  start,
		End:    end,
		Title:  strings.TrimSpace(req.Title),
		Color:  model.DefaultColor,
		TodoID: req.TodoID,
	}
	if req.Color != nil {
		b.Color = *req.Color
	}
	stored, err := s.planner.PlaceBlock(b)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	day, start, end, err := req.interval()
	if err != nil {
		writeFailure(w, err)
		return
	}
	stored, err := s.planner.UpdateBlock(model.BlockID(mux.Vars(r)["id"]), day, start, end)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

type colorRequest struct {
	Color *model.Color `json:"color"`
}

func (s *Server) handleBlockColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Color == nil {
		writeFailure(w, model.Invalidf("color", "is required"))
		return
	}
	stored, err := s.planner.SetBlockColor(model.BlockID(mux.Vars(r)["id"]), *req.Color)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteBlock(model.BlockID(mux.Vars(r)["id"])); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	var g placement.Gesture
	if err := decodeBody(r, &g); err != nil {
		writeFailure(w, err)
		return
	}
	res, err := s.planner.HandleGesture(g)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type zoomRequest struct {
	Factor *float64 `json:"factor"`
	Step   string   `json:"step"`
}

type zoomResponse struct {
	Zoom float64 `json:"zoom"`
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	var zoom float64
	switch {
	case req.Factor != nil:
		zoom = s.planner.ZoomTo(*req.Factor)
	case req.Step == "in":
		zoom = s.planner.ZoomStep(true)
	case req.Step == "out":
		zoom = s.planner.ZoomStep(false)
	default:
		writeFailure(w, model.Invalidf("step", `want "in", "out" or a factor`))
		return
	}
	writeJSON(w, http.StatusOK, zoomResponse{Zoom: zoom})
}

type importRequest struct {
	Path  string   `json:"path"`
	Paths []string `json:"paths"`
}

type importResponse struct {
	Summary importer.Summary `json:"summary"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	paths := req.Paths
	if req.Path != "" {
		paths = append([]string{req.Path}, paths...)
	}
	for _, path := range paths {
		if !s.planner.AllowedSource(path) {
			writeError(w, http.StatusForbidden, "source is not a subscription or inside an import directory")
			return
		}
	}

	sum, err := s.planner.Import(r.Context(), paths, app.TriggerManual)
	if err != nil {
		writeJSON(w, statusFor(err), importResponse{Summary: sum, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Summary: sum})
}
