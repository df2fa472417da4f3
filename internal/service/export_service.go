package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/students-api/internal/models"
	appErrors "github.com/noah-isme/students-api/pkg/errors"
	"github.com/noah-isme/students-api/pkg/export"
)

// ExportFormat enumerates supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

var studentExportHeaders = []string{"id", "first_name", "last_name", "email", "age", "created_at"}

type studentLister interface {
	List(ctx context.Context) ([]models.Student, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportResult is a rendered file ready to be streamed to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StudentExportService renders the student list as a downloadable file.
type StudentExportService struct {
	students  studentLister
	renderers map[ExportFormat]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentExportService constructs the export service. Nil renderers fall
// back to the package defaults.
func NewStudentExportService(students studentLister, csv, pdf renderer, logger *zap.Logger) *StudentExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVRenderer()
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer()
	}
	return &StudentExportService{
		students:  students,
		renderers: map[ExportFormat]renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders every student in the requested format. An empty format
// defaults to CSV.
func (s *StudentExportService) Export(ctx context.Context, format string) (*ExportResult, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = ExportFormatCSV
	}
	r, ok := s.renderers[f]
	if !ok {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string][]string{
			"format": {fmt.Sprintf("Must be one of: %s, %s.", ExportFormatCSV, ExportFormatPDF)},
		})
	}

	students, err := s.students.List(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := r.Render(buildStudentDataset(students))
	if err != nil {
		s.logger.Error("failed to render student export", zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("students_%s.%s", s.now().UTC().Format("20060102_150405"), r.Extension()),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

func buildStudentDataset(students []models.Student) export.Dataset {
	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, []string{
			strconv.FormatInt(st.ID, 10),
			st.FirstName,
			derefString(st.LastName),
			st.Email,
			formatAge(st.Age),
			st.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Title: "Students", Headers: studentExportHeaders, Rows: rows}
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatAge(age *int) string {
	if age == nil {
		return ""
	}
	return strconv.Itoa(*age)
}
