package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree-census/internal/client"
	"tree-census/internal/config"
	"tree-census/internal/db"
	"tree-census/internal/http/middleware"
	"tree-census/internal/model"
	"tree-census/internal/repository"
	"tree-census/internal/service"
	"tree-census/internal/session"
)

const treesCSV = "id,species,condition,lat,lng,height\n" +
	"1,Oak,Good,10,10,21\n" +
	"2,Elm,Poor,50,50,12\n" +
	"3,Oak,Fair,11,11,8\n"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		Environment: "test",
		DB: config.DBConfig{
			Driver:       "sqlite",
			DSN:          "file:" + name + "?mode=memory&cache=shared",
			MaxIdleConns: 1,
		},
		Import: config.ImportConfig{MaxBytes: 1 << 16},
	}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := repository.NewRecordRepository(database)
	issuer := session.NewTokenIssuer("test-secret", time.Hour)
	var dashboard *service.DashboardService
	store := session.NewStore(time.Hour, zerolog.Nop(), func(id string) { dashboard.Evicted(id) })
	dashboard = service.NewDashboardService(repo, store, issuer, client.NewDatasetClient(cfg), service.Options{
		Viewport:   model.Viewport{Center: model.LatLng{Lat: 19.0760, Lng: 72.8777}, Zoom: 12},
		SampleSize: 50,
		SampleSeed: 1,
	}, zerolog.Nop())

	handler := NewHandler(dashboard, cfg.Import.MaxBytes, zerolog.Nop())
	return NewRouter(handler, middleware.Session(issuer), database, cfg.Environment, zerolog.Nop())
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func upload(t *testing.T, router *gin.Engine, token, filename, content string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func createSession(t *testing.T, router *gin.Engine, source string) string {
	t.Helper()
	rec, env := do(t, router, http.MethodPost, "/api/sessions", "", gin.H{"source": source})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info service.SessionInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotEmpty(t, info.Token)
	return info.Token
}

func snapshotOf(t *testing.T, env envelope) service.Snapshot {
	t.Helper()
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "census_http_requests_total")
}

func TestSessionRequired(t *testing.T) {
	router := setupRouter(t)

	rec, env := do(t, router, http.MethodGet, "/api/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, env.Error)

	rec, _ = do(t, router, http.MethodGet, "/api/state", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: createSession(t, router, "sample")})
	cookieRec := httptest.NewRecorder()
	router.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestCreateSessionDefaultsToSample(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var info service.SessionInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 50, info.State.Total)

	rec, _ = do(t, router, http.MethodPost, "/api/sessions", "", gin.H{"source": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportFilterAndExport(t *testing.T) {
	router := setupRouter(t)
	token := createSession(t, router, "empty")

	rec, env := upload(t, router, token, "trees.csv", treesCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report service.ImportReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.Rows)

	rec, env = do(t, router, http.MethodPut, "/api/state/filters", token, gin.H{"species": "Oak", "condition": "all"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, snapshotOf(t, env).Visible)

	rec, _ = do(t, router, http.MethodPut, "/api/state/filters", token, gin.H{"species": "Teak"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodPut, "/api/state/search", token, gin.H{"term": "FAIR"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, snapshotOf(t, env).Visible)

	rec, _ = do(t, router, http.MethodGet, "/api/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tree-census-")
	assert.Equal(t, "id,species,condition,lat,lng,height\n3,Oak,Fair,11,11,8\n", rec.Body.String())

	rec, _ = do(t, router, http.MethodGet, "/api/export?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportKeepsNonFiniteText(t *testing.T) {
	router := setupRouter(t)
	token := createSession(t, router, "empty")

	rec, env := upload(t, router, token, "trees.csv",
		"id,species,condition,lat,lng,notes\n1,Oak,Good,10,10,nan\n2,Elm,Poor,11,11,Infinity\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report service.ImportReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 2, report.Rows)

	rec, env = do(t, router, http.MethodPut, "/api/state/search", token, gin.H{"term": "infinity"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, snapshotOf(t, env).Visible)
}

func TestImportRejected(t *testing.T) {
	router := setupRouter(t)
	token := createSession(t, router, "sample")

	rec, env := upload(t, router, token, "trees.csv", "id,lat,lng\n1,abc,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error, "invalid coordinate")

	rec, _ = upload(t, router, token, "trees.doc", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = upload(t, router, token, "big.csv", strings.Repeat("a", 1<<17))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec, env = do(t, router, http.MethodGet, "/api/state", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, snapshotOf(t, env).Total, "store unchanged")
}

func TestAreaAndSelectionEndpoints(t *testing.T) {
	router := setupRouter(t)
	token := createSession(t, router, "empty")
	rec, _ := upload(t, router, token, "trees.csv", treesCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/area/vertices", token, gin.H{"lat": 0, "lng": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = do(t, router, http.MethodPost, "/api/area/commit", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/area/begin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, v := range [][2]float64{{0, 0}, {0, 20}, {20, 20}, {20, 0}} {
		rec, _ = do(t, router, http.MethodPost, "/api/area/vertices", token, gin.H{"lat": v[0], "lng": v[1]})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := do(t, router, http.MethodPost, "/api/area/commit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := snapshotOf(t, env)
	assert.Equal(t, 2, snap.Visible)
	assert.Equal(t, 2, snap.State.Area.Matched)

	rec, env = do(t, router, http.MethodGet, "/api/map", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Markers struct {
			Features []json.RawMessage `json:"features"`
		} `json:"markers"`
		AreaShape *struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"area_shape"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Markers.Features, 2)
	require.NotNil(t, view.AreaShape)
	assert.Equal(t, "Polygon", view.AreaShape.Geometry.Type)

	rec, env = do(t, router, http.MethodPost, "/api/state/selection", token, gin.H{"id": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.FocusZoom, snapshotOf(t, env).State.Viewport.Zoom)

	rec, _ = do(t, router, http.MethodPost, "/api/state/selection", token, gin.H{"id": 77})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, router, http.MethodDelete, "/api/area", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, snapshotOf(t, env).Visible)
}

func TestViewEndpoints(t *testing.T) {
	router := setupRouter(t)
	token := createSession(t, router, "sample")

	rec, env := do(t, router, http.MethodGet, "/api/records?limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list service.RecordList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Records, 5)
	assert.Equal(t, 45, list.Remaining)

	rec, _ = do(t, router, http.MethodGet, "/api/records?limit=zero", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/records/1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/api/records/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodGet, "/api/table?sort=height&page=2&page_size=20", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Rows       []json.RawMessage `json:"rows"`
		TotalPages int               `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Rows, 20)
	assert.Equal(t, 3, page.TotalPages)

	rec, env = do(t, router, http.MethodGet, "/api/table?page=9223372036854775807&page_size=500", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Rows)

	rec, _ = do(t, router, http.MethodGet, "/api/stats?scope=visible", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/api/options", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, router, http.MethodPost, "/api/state/zoom-in", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 13, snapshotOf(t, env).State.Viewport.Zoom)

	rec, _ = do(t, router, http.MethodPut, "/api/state/tab", token, gin.H{"tab": "dashboard"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodPut, "/api/state/theme", token, gin.H{"dark": true})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodPut, "/api/state/layer", token, gin.H{"layer": "moon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodDelete, "/api/session", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/api/state", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
