package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/students-api/internal/models"
	"github.com/noah-isme/students-api/internal/service"
	"github.com/noah-isme/students-api/internal/validation"
	appErrors "github.com/noah-isme/students-api/pkg/errors"
	"github.com/noah-isme/students-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context) ([]models.Student, error)
	Get(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, input map[string]interface{}) (*models.Student, error)
	Update(ctx context.Context, id int64, input map[string]interface{}, partial bool) (*models.Student, error)
	Delete(ctx context.Context, id int64) error
}

type studentExporter interface {
	Export(ctx context.Context, format string) (*service.ExportResult, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
	exporter studentExporter
}

// NewStudentHandler constructs StudentHandler. exporter may be nil, in which
// case the export endpoint reports 404.
func NewStudentHandler(students studentService, exporter studentExporter) *StudentHandler {
	return &StudentHandler{students: students, exporter: exporter}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Success 200 {array} models.Student
// @Failure 500 {object} response.ErrorBody
// @Router /students/ [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} models.Student
// @Failure 404
// @Router /students/{id}/ [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	student, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.StudentPayload true "Student payload"
// @Success 201 {object} models.Student
// @Failure 400 {object} response.ValidationBody
// @Router /students/ [post]
func (h *StudentHandler) Create(c *gin.Context) {
	input, ok := bindPayload(c)
	if !ok {
		return
	}
	student, err := h.students.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Description PUT validates the full payload, PATCH only the provided fields.
// @Tags Students
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body models.StudentPayload true "Student payload"
// @Success 200 {object} models.Student
// @Failure 400 {object} response.ValidationBody
// @Failure 404
// @Router /students/{id}/ [put]
// @Router /students/{id}/ [patch]
func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	input, ok := bindPayload(c)
	if !ok {
		return
	}
	partial := c.Request.Method == http.MethodPatch
	student, err := h.students.Update(c.Request.Context(), id, input, partial)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Param id path int true "Student ID"
// @Success 204
// @Failure 404
// @Router /students/{id}/ [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export students
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.ValidationBody
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// parseID treats anything that is not a positive integer as an unknown id.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return 0, false
	}
	return id, true
}

// bindPayload decodes the request body into a JSON object. An empty body or
// null reads as {}.
func bindPayload(c *gin.Context) (map[string]interface{}, bool) {
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read body"))
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, true
	}

	var payload interface{}
	if err := binding.JSON.BindBody(body, &payload); err != nil {
		rejectPayload(c, err)
		return nil, false
	}
	switch v := payload.(type) {
	case nil:
		return map[string]interface{}{}, true
	case map[string]interface{}:
		return v, true
	default:
		rejectPayload(c, nil)
		return nil, false
	}
}

func rejectPayload(c *gin.Context, cause error) {
	invalid := validation.InvalidInput()
	appErr := appErrors.WithFields(appErrors.ErrValidation, invalid)
	appErr.Err = cause
	response.Error(c, appErr)
}
