package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/students-api/internal/models"
	"github.com/noah-isme/students-api/pkg/database"
)

const studentColumns = "id, first_name, last_name, email, age, created_at"

// QueryObserver receives the duration of every repository query.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// WithQueryObserver attaches a query timing observer.
func (r *StudentRepository) WithQueryObserver(observer QueryObserver) *StudentRepository {
	r.observer = observer
	return r
}

// List returns every student ordered by id.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	defer r.observe("students.list", time.Now())

	query := "SELECT " + studentColumns + " FROM students ORDER BY id"
	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	defer r.observe("students.find", time.Now())

	query := r.db.Rebind("SELECT " + studentColumns + " FROM students WHERE id = ?")
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find student %d: %w", id, err)
	}
	return &student, nil
}

// ExistsByEmail checks if a student with the given email exists, optionally
// excluding one ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	defer r.observe("students.exists_email", time.Now())

	query := "SELECT 1 FROM students WHERE email = ?"
	args := []interface{}{email}
	if excludeID > 0 {
		query += " AND id <> ?"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(query+" LIMIT 1"), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create inserts a new student and fills in the generated ID and CreatedAt.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	defer r.observe("students.create", time.Now())

	student.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	query := "INSERT INTO students (first_name, last_name, email, age, created_at) VALUES (?, ?, ?, ?, ?)"
	args := []interface{}{student.FirstName, student.LastName, student.Email, student.Age, student.CreatedAt}

	if r.db.DriverName() == database.DriverPostgres {
		var id int64
		if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return wrapWriteError("create student", err)
		}
		student.ID = id
		return nil
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return wrapWriteError("create student", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create student: last insert id: %w", err)
	}
	student.ID = id
	return nil
}

// Update writes every mutable column. It returns sql.ErrNoRows when the
// student does not exist.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	defer r.observe("students.update", time.Now())

	query := r.db.Rebind("UPDATE students SET first_name = ?, last_name = ?, email = ?, age = ? WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, student.FirstName, student.LastName, student.Email, student.Age, student.ID)
	if err != nil {
		return wrapWriteError("update student", err)
	}
	return expectAffected(res, "update student")
}

// Delete removes a student. It returns sql.ErrNoRows when the student does
// not exist.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	defer r.observe("students.delete", time.Now())

	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectAffected(res, "delete student")
}

// Ping checks the underlying connection pool.
func (r *StudentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *StudentRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

func wrapWriteError(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, database.ErrUniqueViolation)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
