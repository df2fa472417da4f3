package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/students-api/internal/handler"
	"github.com/noah-isme/students-api/internal/repository"
	"github.com/noah-isme/students-api/internal/service"
	"github.com/noah-isme/students-api/pkg/config"
	"github.com/noah-isme/students-api/pkg/database"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{URL: "sqlite://"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db))

	metrics := service.NewMetricsService()
	repo := repository.NewStudentRepository(db).WithQueryObserver(metrics)
	students := service.NewStudentService(repo, nil, validator.New(), zap.NewNop())
	exporter := service.NewStudentExportService(students, nil, nil, zap.NewNop())

	return New(Dependencies{
		Config:   &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"},
		Logger:   zap.NewNop(),
		Metrics:  metrics,
		Students: handler.NewStudentHandler(students, exporter),
		System:   handler.NewMetricsHandler(metrics, repo),
	})
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createStudent(t *testing.T, r *gin.Engine, body string) map[string]interface{} {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/students/", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func studentPath(student map[string]interface{}) string {
	return "/api/v1/students/" + strconv.Itoa(int(student["id"].(float64))) + "/"
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	r := newTestRouter(t)

	first := createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)
	second := createStudent(t, r, `{"first_name":"Grace","last_name":"Hopper","email":"grace@x.com","age":45}`)

	assert.NotEqual(t, first["id"], second["id"])
	assert.Nil(t, first["last_name"])
	assert.Nil(t, first["age"])
	assert.Contains(t, first, "last_name")
	assert.Contains(t, first, "age")
	assert.Equal(t, float64(45), second["age"])

	created, err := time.Parse(time.RFC3339Nano, first["created_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), created, time.Minute)
}

func TestCreateDuplicateEmail(t *testing.T) {
	r := newTestRouter(t)
	createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)

	w := do(t, r, http.MethodPost, "/api/v1/students/", `{"first_name":"Other","email":"ada@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email already exists"}`, w.Body.String())
}

func TestCreateValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/students/", `{"email":"ada@x.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{"first_name":["Missing data for required field."]}}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/v1/students/", `{"first_name":"Ada","email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{"email":["Not a valid email address."]}}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/v1/students/", `[]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{"_schema":["Invalid input type."]}}`, w.Body.String())
}

func TestGetUnknownStudent(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/v1/students/999/", "/api/v1/students/abc/"} {
		w := do(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
	}
}

func TestPatchOnlyTouchesProvidedFields(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, `{"first_name":"Ada","last_name":"Lovelace","email":"ada@x.com"}`)

	w := do(t, r, http.MethodPatch, studentPath(student), `{"age":30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, studentPath(student), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, float64(30), got["age"])
	assert.Equal(t, "Ada", got["first_name"])
	assert.Equal(t, "Lovelace", got["last_name"])
	assert.Equal(t, "ada@x.com", got["email"])
	assert.Equal(t, student["created_at"], got["created_at"])
}

func TestPutRequiresFullPayload(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)

	w := do(t, r, http.MethodPut, studentPath(student), `{"email":"ada@x.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["errors"], "first_name")

	w = do(t, r, http.MethodPut, studentPath(student), `{"first_name":"Augusta","email":"augusta@x.com","age":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Augusta", decode(t, w)["first_name"])
}

func TestUpdateEmailConflict(t *testing.T) {
	r := newTestRouter(t)
	createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)
	grace := createStudent(t, r, `{"first_name":"Grace","email":"grace@x.com"}`)

	w := do(t, r, http.MethodPatch, studentPath(grace), `{"email":"ada@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email already exists"}`, w.Body.String())
}

func TestDeleteThenGet(t *testing.T) {
	r := newTestRouter(t)
	student := createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)

	w := do(t, r, http.MethodDelete, studentPath(student), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, studentPath(student), "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, studentPath(student), "").Code)
}

func TestListReturnsArray(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/students/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com"}`)
	createStudent(t, r, `{"first_name":"Grace","email":"grace@x.com"}`)
	w = do(t, r, http.MethodGet, "/api/v1/students/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Ada", list[0]["first_name"])
	assert.Equal(t, "Grace", list[1]["first_name"])
}

func TestMissingTrailingSlashRedirects(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/v1/students", "")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/api/v1/students/", w.Header().Get("Location"))

	w = do(t, r, http.MethodPost, "/api/v1/students", `{"first_name":"Ada","email":"ada@x.com"}`)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

func TestExportCSV(t *testing.T) {
	r := newTestRouter(t)
	createStudent(t, r, `{"first_name":"Ada","email":"ada@x.com","age":36}`)

	w := do(t, r, http.MethodGet, "/api/v1/students/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,first_name,last_name,email,age,created_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,Ada,,ada@x.com,36,"))

	w = do(t, r, http.MethodGet, "/api/v1/students/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSystemEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, w.Body.String())

	do(t, r, http.MethodGet, "/api/v1/students/", "")
	w = do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/v1/students/"`)
	assert.Contains(t, w.Body.String(), `students_api_db_query_duration_seconds_count{query="students.list"}`)
}

func TestProductionHidesDocs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := New(Dependencies{Config: &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}})

	w := do(t, r, http.MethodGet, "/docs/index.html", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
