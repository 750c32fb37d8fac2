package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/dto"
	"github.com/ignatzorin/smartque-backend/internal/http/handlers/common"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/service"
)

// AppointmentService — операции с записями на приём, нужные HTTP слою.
type AppointmentService interface {
	NextQueueNumber(ctx context.Context, department, date string) (string, error)
	BookAppointment(ctx context.Context, actor service.Actor, in service.BookInput) (*models.Appointment, error)
	CancelAppointment(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Appointment, error)
	RescheduleAppointment(ctx context.Context, actor service.Actor, id uuid.UUID, newDateTime time.Time) (*models.Appointment, error)
	CompleteAppointment(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Appointment, error)
	ListUserAppointments(ctx context.Context, actor service.Actor, userID uuid.UUID) ([]models.Appointment, error)
}

// AppointmentHandler обслуживает очередь и записи на приём.
type AppointmentHandler struct {
	appointments AppointmentService
}

// NewAppointmentHandler создаёт хэндлер.
func NewAppointmentHandler(appointments AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// NextQueueNumber обрабатывает GET /api/appointments/next-queue?department=&date=.
func (h *AppointmentHandler) NextQueueNumber(c *gin.Context) {
	number, err := h.appointments.NextQueueNumber(c.Request.Context(), c.Query("department"), c.Query("date"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QueueNumberResponse{Success: true, QueueNumber: number})
}

// Book обрабатывает POST /api/appointments/book.
func (h *AppointmentHandler) Book(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.BookAppointmentRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	var userID uuid.UUID
	if req.UserID != "" {
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			common.Fail(c, apperror.Validation("поле userId должно быть валидным UUID"))
			return
		}
	}

	appointment, err := h.appointments.BookAppointment(c.Request.Context(), actor, service.BookInput{
		UserID:          userID,
		DoctorName:      req.DoctorName,
		DepartmentName:  req.DepartmentName,
		DateTime:        req.DateTime,
		QueueNumber:     req.QueueNumber,
		ConsultationFee: req.ConsultationFee,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AppointmentResponse{
		Success:     true,
		Message:     "запись создана",
		Appointment: appointment,
	})
}

// ListByUser обрабатывает GET /api/appointments/user/:userId.
func (h *AppointmentHandler) ListByUser(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	userID, err := common.ParseUUIDParam(c, "userId")
	if err != nil {
		common.Fail(c, err)
		return
	}

	appointments, err := h.appointments.ListUserAppointments(c.Request.Context(), actor, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AppointmentsResponse{Success: true, Appointments: appointments})
}

// Cancel обрабатывает POST /api/appointments/cancel/:appointmentId.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.transition(c, "запись отменена", h.appointments.CancelAppointment)
}

// Complete обрабатывает POST /api/appointments/complete/:appointmentId. Только для администратора.
func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.transition(c, "приём завершён", h.appointments.CompleteAppointment)
}

// Reschedule обрабатывает POST /api/appointments/reschedule/:appointmentId.
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "appointmentId")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.RescheduleRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	appointment, err := h.appointments.RescheduleAppointment(c.Request.Context(), actor, id, req.DateTime)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AppointmentResponse{
		Success:     true,
		Message:     "запись перенесена",
		Appointment: appointment,
	})
}

type transitionFunc func(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Appointment, error)

func (h *AppointmentHandler) transition(c *gin.Context, message string, fn transitionFunc) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "appointmentId")
	if err != nil {
		common.Fail(c, err)
		return
	}

	appointment, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AppointmentResponse{
		Success:     true,
		Message:     message,
		Appointment: appointment,
	})
}
