package models

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus константы статусов записи на приём
const (
	AppointmentStatusUpcoming  = "upcoming"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
)

// ValidAppointmentStatuses список валидных статусов записи
var ValidAppointmentStatuses = map[string]struct{}{
	AppointmentStatusUpcoming:  {},
	AppointmentStatusCompleted: {},
	AppointmentStatusCancelled: {},
}

// Appointment описывает запись пациента к врачу с номером в очереди отделения.
type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"userId"`
	DoctorName     string    `db:"doctor_name" json:"doctorName"`
	DepartmentName string    `db:"department_name" json:"departmentName"`
	DateTime       time.Time `db:"date_time" json:"dateTime"`
	// QueueDate — день, в разрезе которого был выдан номер; при переносе не меняется.
	QueueDate       time.Time `db:"queue_date" json:"-"`
	QueueNumber     string    `db:"queue_number" json:"queueNumber"`
	Status          string    `db:"status" json:"status"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultationFee"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// IsUpcoming сообщает, ожидается ли ещё приём.
func (a *Appointment) IsUpcoming() bool {
	return a.Status == AppointmentStatusUpcoming
}
