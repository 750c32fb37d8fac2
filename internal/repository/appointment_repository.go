package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
)

var (
	// ErrAppointmentNotFound возвращается, когда запись на приём не найдена.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrQueueSlotTaken возвращается, если номер в очереди уже занят в отделении на этот день.
	ErrQueueSlotTaken = errors.New("queue slot taken")
)

// queueSlotConstraint — частичный уникальный индекс из миграции 002.
const queueSlotConstraint = "uq_appointments_queue_slot"

// QueueDateLayout — формат дня очереди при передаче в PostgreSQL.
const QueueDateLayout = "2006-01-02"

const appointmentColumns = `id, user_id, doctor_name, department_name, date_time, queue_date, queue_number, status, consultation_fee, created_at, updated_at`

// AppointmentRepository отвечает за таблицу appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository создаёт экземпляр репозитория.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// CountUpcoming считает ожидаемые приёмы отделения с date_time в интервале [from, to].
func (r *AppointmentRepository) CountUpcoming(ctx context.Context, department string, from, to time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE department_name = $1
		  AND date_time BETWEEN $2 AND $3
		  AND status = 'upcoming'
	`
	if err := r.db.GetContext(ctx, &count, query, department, from, to); err != nil {
		return 0, fmt.Errorf("appointment repository: count upcoming %w", err)
	}
	return count, nil
}

// MaxUpcomingQueueNumber возвращает наибольший числовой номер среди ожидаемых приёмов
// отделения, выданных на день queueDate. Нечисловые номера игнорируются.
func (r *AppointmentRepository) MaxUpcomingQueueNumber(ctx context.Context, department string, queueDate time.Time) (int, error) {
	var maxNumber int
	query := `
		SELECT COALESCE(MAX(CASE WHEN queue_number ~ '^[0-9]{1,9}$' THEN queue_number::int END), 0)
		FROM appointments
		WHERE department_name = $1
		  AND queue_date = $2::date
		  AND status = 'upcoming'
	`
	if err := r.db.GetContext(ctx, &maxNumber, query, department, queueDate.Format(QueueDateLayout)); err != nil {
		return 0, fmt.Errorf("appointment repository: max queue number %w", err)
	}
	return maxNumber, nil
}

// Create сохраняет запись. Если номер уже занят, возвращает ErrQueueSlotTaken.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) error {
	query := `
		INSERT INTO appointments (user_id, doctor_name, department_name, date_time, queue_date, queue_number, status, consultation_fee)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		a.UserID, a.DoctorName, a.DepartmentName, a.DateTime,
		a.QueueDate.Format(QueueDateLayout), a.QueueNumber, a.Status, a.ConsultationFee,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, queueSlotConstraint) {
			return ErrQueueSlotTaken
		}
		return fmt.Errorf("appointment repository: create %w", err)
	}
	return nil
}

// GetByID возвращает запись по идентификатору.
func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var a models.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointment repository: get by id %w", err)
	}
	return &a, nil
}

// ListByUser возвращает записи пользователя, самые поздние первыми.
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Appointment, error) {
	appointments := []models.Appointment{}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE user_id = $1 ORDER BY date_time DESC`
	if err := r.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		return nil, fmt.Errorf("appointment repository: list by user %w", err)
	}
	return appointments, nil
}

// UpdateStatus меняет статус и возвращает обновлённую запись.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Appointment, error) {
	query := `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appointmentColumns
	return r.updateReturning(ctx, query, id, status)
}

// UpdateDateTime переносит приём, номер в очереди и день выдачи номера не меняются.
func (r *AppointmentRepository) UpdateDateTime(ctx context.Context, id uuid.UUID, dateTime time.Time) (*models.Appointment, error) {
	query := `
		UPDATE appointments SET date_time = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appointmentColumns
	return r.updateReturning(ctx, query, id, dateTime)
}

func (r *AppointmentRepository) updateReturning(ctx context.Context, query string, id uuid.UUID, value interface{}) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.db.GetContext(ctx, &a, query, id, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		if common.IsUniqueViolation(err, queueSlotConstraint) {
			return nil, ErrQueueSlotTaken
		}
		return nil, fmt.Errorf("appointment repository: update %w", err)
	}
	return &a, nil
}
