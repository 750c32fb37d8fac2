package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smartque-backend/internal/lock"
	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/repository"
	"github.com/ignatzorin/smartque-backend/internal/validation"
	"github.com/ignatzorin/smartque-backend/internal/ws"
)

const (
	maxBookAttempts  = 3
	partitionLockTTL = 5 * time.Second
)

// AppointmentRepository описывает хранилище записей на приём.
type AppointmentRepository interface {
	CountUpcoming(ctx context.Context, department string, from, to time.Time) (int, error)
	MaxUpcomingQueueNumber(ctx context.Context, department string, queueDate time.Time) (int, error)
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Appointment, error)
	UpdateDateTime(ctx context.Context, id uuid.UUID, dateTime time.Time) (*models.Appointment, error)
}

// EventPublisher доставляет события владельцу записи.
type EventPublisher interface {
	Publish(userID uuid.UUID, event string, data interface{})
}

// Actor — пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin сообщает, есть ли у пользователя права администратора.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) canAccess(owner uuid.UUID) bool {
	return a.IsAdmin() || a.UserID == owner
}

// BookInput содержит данные новой записи.
type BookInput struct {
	// UserID пустой — запись на себя.
	UserID          uuid.UUID
	DoctorName      string
	DepartmentName  string
	DateTime        time.Time
	QueueNumber     string
	ConsultationFee float64
}

// AppointmentService выдаёт номера в очереди и ведёт статусы записей.
type AppointmentService struct {
	repo      AppointmentRepository
	locker    lock.PartitionLocker
	publisher EventPublisher
	loc       *time.Location
}

// NewAppointmentService создаёт сервис. loc задаёт часовой пояс, в котором считаются дни очереди.
func NewAppointmentService(repo AppointmentRepository, locker lock.PartitionLocker, publisher EventPublisher, loc *time.Location) *AppointmentService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentService{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		loc:       loc,
	}
}

// NextQueueNumber возвращает следующий номер в очереди отделения на день date:
// число ожидаемых приёмов за этот день плюс один.
func (s *AppointmentService) NextQueueNumber(ctx context.Context, department, date string) (string, error) {
	department = strings.TrimSpace(department)
	if department == "" || strings.TrimSpace(date) == "" {
		return "", apperror.Validation("отделение и дата обязательны")
	}

	day, err := ParseQueueDate(date, s.loc)
	if err != nil {
		return "", apperror.Validation(err.Error())
	}

	from, to := dayBounds(day, s.loc)
	count, err := s.repo.CountUpcoming(ctx, department, from, to)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить номер в очереди")
	}

	return strconv.Itoa(count + 1), nil
}

// BookAppointment сохраняет запись со статусом upcoming.
// Если номер уже занят в отделении на этот день, выдаётся следующий свободный.
func (s *AppointmentService) BookAppointment(ctx context.Context, actor Actor, in BookInput) (*models.Appointment, error) {
	userID := in.UserID
	if userID == uuid.Nil {
		userID = actor.UserID
	}
	if !actor.canAccess(userID) {
		return nil, apperror.ErrForbidden
	}

	department := strings.TrimSpace(in.DepartmentName)
	doctor := strings.TrimSpace(in.DoctorName)
	queueNumber := strings.TrimSpace(in.QueueNumber)
	if userID == uuid.Nil || doctor == "" || department == "" || in.DateTime.IsZero() || queueNumber == "" {
		return nil, apperror.Validation("не заполнены обязательные поля")
	}
	if err := validation.ValidateDoctorName(doctor); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateDepartment(department); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateConsultationFee(in.ConsultationFee); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	queueDate := startOfDay(in.DateTime, s.loc)

	lockCtx, cancel := context.WithTimeout(ctx, partitionLockTTL)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, partitionKey(department, queueDate))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "очередь отделения занята, повторите попытку")
	}
	defer unlock()

	a := &models.Appointment{
		UserID:          userID,
		DoctorName:      doctor,
		DepartmentName:  department,
		DateTime:        in.DateTime,
		QueueDate:       queueDate,
		QueueNumber:     queueNumber,
		Status:          models.AppointmentStatusUpcoming,
		ConsultationFee: in.ConsultationFee,
	}

	for attempt := 1; ; attempt++ {
		err := s.repo.Create(ctx, a)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrQueueSlotTaken) {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать запись")
		}
		if attempt == maxBookAttempts {
			return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "не удалось выделить номер в очереди, повторите попытку")
		}

		maxNumber, err := s.repo.MaxUpcomingQueueNumber(ctx, department, queueDate)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать запись")
		}
		logger.Log.WithFields(logrus.Fields{
			"department": department,
			"requested":  a.QueueNumber,
			"assigned":   maxNumber + 1,
		}).Info("appointment service: номер занят, выдан следующий")
		a.QueueNumber = strconv.Itoa(maxNumber + 1)
	}

	s.publish(a, ws.EventAppointmentBooked)
	return a, nil
}

// CancelAppointment отменяет запись. Повторная отмена успешна.
func (s *AppointmentService) CancelAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*models.Appointment, error) {
	a, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case models.AppointmentStatusCancelled:
		return a, nil
	case models.AppointmentStatusCompleted:
		return nil, apperror.New(apperror.ErrCodeConflict, "нельзя отменить завершённый приём")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.AppointmentStatusCancelled)
	if err != nil {
		return nil, s.mapUpdateError(err)
	}

	s.publish(updated, ws.EventAppointmentCancelled)
	return updated, nil
}

// RescheduleAppointment переносит приём на новое время.
// Номер в очереди и день его выдачи остаются прежними.
func (s *AppointmentService) RescheduleAppointment(ctx context.Context, actor Actor, id uuid.UUID, newDateTime time.Time) (*models.Appointment, error) {
	if newDateTime.IsZero() {
		return nil, apperror.Validation("новое время приёма обязательно")
	}

	a, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !a.IsUpcoming() {
		return nil, apperror.New(apperror.ErrCodeConflict, "перенести можно только ожидаемый приём")
	}

	updated, err := s.repo.UpdateDateTime(ctx, id, newDateTime)
	if err != nil {
		return nil, s.mapUpdateError(err)
	}

	s.publish(updated, ws.EventAppointmentRescheduled)
	return updated, nil
}

// CompleteAppointment отмечает приём состоявшимся. Доступно только администратору.
func (s *AppointmentService) CompleteAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*models.Appointment, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	a, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case models.AppointmentStatusCompleted:
		return a, nil
	case models.AppointmentStatusCancelled:
		return nil, apperror.New(apperror.ErrCodeConflict, "нельзя завершить отменённый приём")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.AppointmentStatusCompleted)
	if err != nil {
		return nil, s.mapUpdateError(err)
	}

	s.publish(updated, ws.EventAppointmentCompleted)
	return updated, nil
}

// ListUserAppointments возвращает записи пользователя, самые поздние первыми.
func (s *AppointmentService) ListUserAppointments(ctx context.Context, actor Actor, userID uuid.UUID) ([]models.Appointment, error) {
	if !actor.canAccess(userID) {
		return nil, apperror.ErrForbidden
	}

	appointments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить записи")
	}
	return appointments, nil
}

// getOwned загружает запись; чужая запись для не-администратора выглядит как отсутствующая.
func (s *AppointmentService) getOwned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAppointmentNotFound) {
			return nil, apperror.ErrAppointmentNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить запись")
	}
	if !actor.canAccess(a.UserID) {
		return nil, apperror.ErrAppointmentNotFound
	}
	return a, nil
}

func (s *AppointmentService) mapUpdateError(err error) error {
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		return apperror.ErrAppointmentNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обновить запись")
}

func (s *AppointmentService) publish(a *models.Appointment, event string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(a.UserID, event, a)
}

// ParseQueueDate разбирает день очереди в формате 2006-01-02 или RFC3339.
// Результат — полночь этого дня в loc.
func ParseQueueDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(repository.QueueDateLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return startOfDay(t, loc), nil
	}
	return time.Time{}, errors.New("дата должна быть в формате YYYY-MM-DD или RFC3339")
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dayBounds возвращает [00:00:00.000, 23:59:59.999] дня day.
func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	from := startOfDay(day, loc)
	to := time.Date(from.Year(), from.Month(), from.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return from, to
}

func partitionKey(department string, queueDate time.Time) string {
	return strings.ToLower(department) + "|" + queueDate.Format(repository.QueueDateLayout)
}
