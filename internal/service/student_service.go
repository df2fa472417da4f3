package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/students-api/internal/models"
	"github.com/noah-isme/students-api/internal/validation"
	"github.com/noah-isme/students-api/pkg/database"
	appErrors "github.com/noah-isme/students-api/pkg/errors"
)

const (
	studentListCacheKey  = "students:list"
	studentCacheKeyBase  = "students:id:"
	studentCachePattern  = "students:*"
	studentNotFoundError = "student not found"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
}

type studentCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	cache     studentCache
	validator *validation.StudentValidator
	logger    *zap.Logger
}

// NewStudentService constructs the student service. cache may be nil.
func NewStudentService(repo studentRepository, cache studentCache, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		cache:     cache,
		validator: validation.NewStudentValidator(validate),
		logger:    logger,
	}
}

// List returns every student.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	var cached []models.Student
	if s.cacheGet(ctx, studentListCacheKey, &cached) {
		return cached, nil
	}
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to list students")
	}
	s.cacheSet(ctx, studentListCacheKey, students)
	return students, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	var cached models.Student
	if s.cacheGet(ctx, studentCacheKey(id), &cached) {
		return &cached, nil
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, studentCacheKey(id), student)
	return student, nil
}

// Create validates input in full mode and registers a new student.
func (s *StudentService) Create(ctx context.Context, input map[string]interface{}) (*models.Student, error) {
	fields, fieldErrs := s.validator.Validate(input, validation.ModeFull)
	if fieldErrs != nil {
		return nil, invalidPayload(fieldErrs)
	}
	if err := s.ensureEmailFree(ctx, fields.Email, 0); err != nil {
		return nil, err
	}

	student := fields.NewStudent()
	if err := s.repo.Create(ctx, &student); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return nil, appErrors.Wrap(err, appErrors.ErrEmailExists.Code, appErrors.ErrEmailExists.Status, appErrors.ErrEmailExists.Message)
		}
		return nil, s.internal(err, "failed to create student")
	}
	s.invalidate(ctx)
	s.logger.Info("student created", zap.Int64("id", student.ID))
	return &student, nil
}

// Update applies input to an existing student. partial selects PATCH
// semantics where only the provided fields are validated.
func (s *StudentService) Update(ctx context.Context, id int64, input map[string]interface{}, partial bool) (*models.Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	mode := validation.ModeFull
	if partial {
		mode = validation.ModePartial
	}
	fields, fieldErrs := s.validator.Validate(input, mode)
	if fieldErrs != nil {
		return nil, invalidPayload(fieldErrs)
	}
	if fields.Has(validation.FieldEmail) && fields.Email != student.Email {
		if err := s.ensureEmailFree(ctx, fields.Email, id); err != nil {
			return nil, err
		}
	}

	fields.ApplyTo(student)
	if err := s.repo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, studentNotFoundError)
		case errors.Is(err, database.ErrUniqueViolation):
			return nil, appErrors.Wrap(err, appErrors.ErrEmailExists.Code, appErrors.ErrEmailExists.Status, appErrors.ErrEmailExists.Message)
		}
		return nil, s.internal(err, "failed to update student")
	}
	s.invalidate(ctx)
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, studentNotFoundError)
		}
		return s.internal(err, "failed to delete student")
	}
	s.invalidate(ctx)
	s.logger.Info("student deleted", zap.Int64("id", id))
	return nil
}

func (s *StudentService) load(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, studentNotFoundError)
		}
		return nil, s.internal(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) ensureEmailFree(ctx context.Context, email string, excludeID int64) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return s.internal(err, "failed to validate email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrEmailExists, "")
	}
	return nil
}

func (s *StudentService) internal(err error, message string) error {
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *StudentService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *StudentService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *StudentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, studentCachePattern)
}

func invalidPayload(fieldErrs validation.FieldErrors) error {
	err := appErrors.WithFields(appErrors.ErrValidation, fieldErrs)
	err.Err = fieldErrs
	return err
}

func studentCacheKey(id int64) string {
	return studentCacheKeyBase + strconv.FormatInt(id, 10)
}
