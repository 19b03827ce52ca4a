package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globo/viewer/internal/counts"
	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/internal/layer"
	"github.com/globo/viewer/internal/repository/postgres"
	"github.com/globo/viewer/internal/service"
)

const square = `{"type":"Feature","properties":{"name":"sq"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`

// localBackend answers the session in-process through the counting service
type localBackend struct {
	svc *counts.Service
}

func (b localBackend) Simplify(_ context.Context, precision string, body []byte) (*domain.Document, error) {
	p, err := counts.ParsePrecision(precision)
	if err != nil {
		return nil, err
	}
	doc, err := domain.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return b.svc.Simplify(doc, p)
}

func (b localBackend) Count(ctx context.Context, precision, start, end string, body []byte) (*domain.Document, error) {
	p, err := counts.ParsePrecision(precision)
	if err != nil {
		return nil, err
	}
	doc, err := domain.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return b.svc.Count(ctx, doc, p, start, end)
}

func newTestApp(t *testing.T) (*fiber.App, *service.Session) {
	t.Helper()
	svc := counts.NewService(postgres.NewMockRepository(), 64, nil)
	session := service.NewSession(localBackend{svc: svc}, layer.NewManager(nil), service.SessionConfig{
		Map: geomap.DefaultOptions(),
	}, nil)
	t.Cleanup(func() {
		session.Close()
		session.Wait()
	})

	app := fiber.New()
	SetupRoutes(app, NewHandler(session, svc, nil))
	return app, session
}

func do(t *testing.T, app *fiber.App, method, target, contentType string, body io.Reader) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func doJSON(t *testing.T, app *fiber.App, method, target string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	status, raw := do(t, app, method, target, fiber.MIMEApplicationJSON, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return status, out
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["storage"])

	status, raw := do(t, app, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "globo_layers_created_total")
}

func TestFormEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/form", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2015-01-01", body["data"].(map[string]any)["firstDate"])

	status, body = doJSON(t, app, http.MethodPatch, "/api/v1/form", service.FieldChange{Name: "precision", Value: "7"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "7", body["data"].(map[string]any)["precision"])

	status, _ = doJSON(t, app, http.MethodPatch, "/api/v1/form", service.FieldChange{Name: "colour", Value: "red"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPatch, "/api/v1/form", fiber.MIMEApplicationJSON, strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUploadInput(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("raw body", func(t *testing.T) {
		status, raw := do(t, app, http.MethodPost, "/api/v1/input", fiber.MIMEApplicationJSON, strings.NewReader(square))
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(raw), `"precision":""`)
	})

	t.Run("multipart file", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", "area.geojson")
		require.NoError(t, err)
		_, err = part.Write([]byte(square))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		status, _ := do(t, app, http.MethodPost, "/api/v1/input", w.FormDataContentType(), &buf)
		require.Equal(t, http.StatusOK, status)
		status, body := doJSON(t, app, http.MethodGet, "/api/v1/form", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, square, body["data"].(map[string]any)["input"])
	})

	t.Run("empty", func(t *testing.T) {
		status, _ := do(t, app, http.MethodPost, "/api/v1/input", fiber.MIMETextPlain, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func mapState(t *testing.T, app *fiber.App) map[string]any {
	t.Helper()
	status, body := doJSON(t, app, http.MethodGet, "/api/v1/map", nil)
	require.Equal(t, http.StatusOK, status)
	return body["data"].(map[string]any)
}

func TestPipelineEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/count", nil)
	assert.Equal(t, http.StatusBadRequest, status, "input and precision are required")

	status, _ = do(t, app, http.MethodPost, "/api/v1/input", fiber.MIMEApplicationJSON, strings.NewReader(square))
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodPatch, "/api/v1/form", service.FieldChange{Name: "precision", Value: "8"})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/count", nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, 1.0, body["seq"])

	require.Eventually(t, func() bool {
		return mapState(t, app)["applied"] == 1.0
	}, 2*time.Second, 10*time.Millisecond)

	view := mapState(t, app)
	m := view["map"].(map[string]any)
	assert.Equal(t, "mounted-populated", m["state"])
	assert.Len(t, m["overlays"], 2)
	assert.NotEmpty(t, m["tiles"])
	assert.Nil(t, view["info"])

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/map/hover", hoverRequest{Role: "result", Index: 0})
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body["info"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body["info"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/map/hover", hoverRequest{Role: "result", Index: 9})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/map/hover", hoverRequest{Role: "legend"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/map/click", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestPipelineAfterClose(t *testing.T) {
	app, session := newTestApp(t)
	session.Close()

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/simplify", nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/map", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestBackendEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("simplify", func(t *testing.T) {
		status, raw := do(t, app, http.MethodPost, "/tos2/geojson/multipolygon?precision=6", fiber.MIMEApplicationJSON, strings.NewReader(square))
		require.Equal(t, http.StatusOK, status)
		doc, err := domain.ParseDocument(raw)
		require.NoError(t, err)
		require.Equal(t, 1, doc.Len())
		assert.Equal(t, "MultiPolygon", doc.Features()[0].Geometry.GeoJSONType())
		assert.Equal(t, "sq", doc.Features()[0].Properties["name"])
	})

	t.Run("simplify bad precision", func(t *testing.T) {
		status, raw := do(t, app, http.MethodPost, "/tos2/geojson/multipolygon?precision=40", fiber.MIMEApplicationJSON, strings.NewReader(square))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(raw), "bad precision")
	})

	t.Run("count", func(t *testing.T) {
		status, raw := do(t, app, http.MethodPost, "/v1/counts/multipolygon?precision=8&start=2015-01-01&end=2015-01-02", fiber.MIMEApplicationJSON, strings.NewReader(square))
		require.Equal(t, http.StatusOK, status)
		doc, err := domain.ParseDocument(raw)
		require.NoError(t, err)
		_, ok := domain.CountOf(doc.Features()[0])
		assert.True(t, ok)
	})

	t.Run("count missing start", func(t *testing.T) {
		status, raw := do(t, app, http.MethodPost, "/v1/counts/multipolygon?precision=8&end=2015-01-02", fiber.MIMEApplicationJSON, strings.NewReader(square))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Missing start date", string(raw))
	})

	t.Run("count malformed body", func(t *testing.T) {
		points := `{"type":"Point","coordinates":[1,1]}`
		status, _ := do(t, app, http.MethodPost, "/v1/counts/multipolygon?start=2015-01-01&end=2015-01-02", fiber.MIMEApplicationJSON, strings.NewReader(points))
		assert.Equal(t, http.StatusBadRequest, status)
	})
}
