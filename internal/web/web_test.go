package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/app"
	"weekplan/internal/config"
	"weekplan/internal/ics"
	"weekplan/internal/model"
)

type stubDecoder map[string][]ics.Record

func (s stubDecoder) Load(_ context.Context, location string) ([]ics.Record, error) {
	if recs, ok := s[location]; ok {
		return recs, nil
	}
	return nil, errors.New("unknown source")
}

func newTestServer(t *testing.T, auth *config.BasicAuthConfig) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BasicAuth = auth
	cfg.ICS = []config.ICSConfig{{ID: "team", URL: "team.ics"}, {ID: "broken", URL: "nope.ics"}}
	dec := stubDecoder{
		"team.ics": {{
			Title: "Retro",
			Start: time.Date(2024, 6, 6, 15, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 6, 6, 16, 0, 0, 0, time.UTC),
		}},
	}
	p, err := app.New(cfg,
		app.WithClock(func() time.Time { return time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC) }),
		app.WithDecoder(dec),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(p).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTodoLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	var item model.ToDoItem
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/todos", `{"day":2,"text":"plan sprint"}`, &item))
	assert.Equal(t, model.Wednesday, item.Day)

	var edited model.ToDoItem
	require.Equal(t, http.StatusOK, do(t, srv, "PATCH", "/api/todos/"+string(item.ID), `{"text":"plan sprint 12"}`, &edited))
	assert.Equal(t, "plan sprint 12", edited.Text)

	var toggle toggleResponse
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/todos/"+string(item.ID)+"/toggle", "", &toggle))
	assert.Equal(t, toggleResponse{Done: true, Celebrate: true}, toggle)

	assert.Equal(t, http.StatusNoContent, do(t, srv, "DELETE", "/api/todos/"+string(item.ID), "", nil))
	assert.Equal(t, http.StatusNotFound, do(t, srv, "DELETE", "/api/todos/"+string(item.ID), "", nil))

	var e struct{ Error string }
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/todos", `{"day":1,"text":"  "}`, &e))
	assert.NotEmpty(t, e.Error)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/todos", `{"text":"no day"}`, nil))
}

func TestBlockPlacementAndConflicts(t *testing.T) {
	srv := newTestServer(t, nil)

	var first, second model.Block
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"09:00","end":"10:00","title":"focus"}`, &first))
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"09:30","end":"10:30","title":"email","color":3}`, &second))
	assert.Equal(t, model.Clock(10, 0, 0), second.Start)
	assert.Equal(t, model.ColorRed, second.Color)

	var moved model.Block
	require.Equal(t, http.StatusOK, do(t, srv, "PUT", "/api/blocks/"+string(first.ID), `{"day":1,"start":"13:00","end":"14:30"}`, &moved))
	assert.Equal(t, model.Clock(13, 0, 0), moved.Start)

	var recoloured model.Block
	require.Equal(t, http.StatusOK, do(t, srv, "PATCH", "/api/blocks/"+string(first.ID)+"/color", `{"color":2}`, &recoloured))
	assert.Equal(t, model.ColorGreen, recoloured.Color)

	assert.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"23:30","end":"24:00"}`, nil))
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"23:00","end":"24:00"}`, nil))

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"10:00","end":"09:00"}`, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/blocks", `{"day":1,"start":"ten","end":"11:00"}`, nil))
	assert.Equal(t, http.StatusNotFound, do(t, srv, "PUT", "/api/blocks/missing", `{"day":1,"start":"09:00","end":"10:00"}`, nil))

	assert.Equal(t, http.StatusNoContent, do(t, srv, "DELETE", "/api/blocks/"+string(second.ID), "", nil))
}

func TestGestureAndZoom(t *testing.T) {
	srv := newTestServer(t, nil)

	var view app.View
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/week", "", &view))
	x := view.Days[model.Monday].X + 5
	y := view.Hours[3].Y // 09:00

	var res struct {
		Preview   map[string]any `json:"preview"`
		Committed string         `json:"committed"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/gestures",
		`{"kind":"start","x":`+ftoa(x)+`,"y":`+ftoa(y)+`,"title":"walk"}`, &res))
	assert.Empty(t, res.Committed)
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/gestures",
		`{"kind":"end","x":`+ftoa(x)+`,"y":`+ftoa(y)+`}`, &res))
	assert.NotEmpty(t, res.Committed)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/gestures", `{"kind":"end","x":1,"y":1}`, nil))

	var z zoomResponse
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/zoom", `{"step":"in"}`, &z))
	assert.InDelta(t, 1.25, z.Zoom, 1e-9)
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/zoom", `{"factor":9}`, &z))
	assert.InDelta(t, 3.0, z.Zoom, 1e-9)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/zoom", `{"step":"sideways"}`, nil))

	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/week", "", &view))
	blocks := view.Days[model.Monday].Blocks
	require.Len(t, blocks, 1)
	assert.Equal(t, model.Clock(9, 0, 0), blocks[0].Start, "zoom leaves stored times alone")
	assert.InDelta(t, 3.0*500.0/18.0, blocks[0].Rect.Height, 1e-6)
}

func TestImportEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	var ok importResponse
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/import", `{"path":"team.ics"}`, &ok))
	assert.Equal(t, 1, ok.Summary.Kept)

	var failed importResponse
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, "POST", "/api/import", `{"path":"nope.ics"}`, &failed))
	assert.Contains(t, failed.Error, "decode failed")

	var view app.View
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/week", "", &view))
	thu := view.Days[model.Thursday].Blocks
	require.Len(t, thu, 1)
	assert.Equal(t, "Retro", thu[0].Title)
	assert.Equal(t, model.SourceImported, thu[0].Source)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", "/api/blocks/"+string(thu[0].ID), `{"day":3,"start":"08:00","end":"09:00"}`, nil))
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PATCH", "/api/blocks/"+string(thu[0].ID)+"/color", `{"color":1}`, nil))
}

func TestImportEndpointRefusesUnlistedSources(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, body := range []string{
		`{"path":"/etc/passwd"}`,
		`{"path":"http://169.254.169.254/latest/meta-data"}`,
		`{"paths":["team.ics","../team.ics"]}`,
	} {
		var resp map[string]string
		assert.Equal(t, http.StatusForbidden, do(t, srv, "POST", "/api/import", body, &resp), body)
		assert.NotContains(t, resp["error"], "passwd")
	}

	var view app.View
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/week", "", &view))
	for _, d := range view.Days {
		assert.Empty(t, d.Blocks)
	}
}

func TestWeekPageAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, "POST", "/api/blocks", `{"day":4,"start":"11:00","end":"12:00","title":"Lunch & learn"}`, nil)

	resp, err := srv.Client().Get(srv.URL + "/week")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `data-ready="true"`)
	assert.Contains(t, string(body), "Lunch &amp; learn")
	assert.Contains(t, string(body), "Week of 03 Jun 2024 - 09 Jun 2024")

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `route="/api/blocks"`)
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, &config.BasicAuthConfig{Username: "me", Password: "secret"})

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/api/week")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", srv.URL+"/api/week", nil)
	req.SetBasicAuth("me", "secret")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.Invalidf("x", "bad"), http.StatusBadRequest},
		{&model.NotFoundError{Kind: "todo", ID: "1"}, http.StatusNotFound},
		{&model.PlacementError{Reason: model.NoRoomAvailable}, http.StatusConflict},
		{&model.ImportError{Reason: model.ImportEmpty}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func ftoa(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
