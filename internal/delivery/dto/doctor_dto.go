package dto

import (
	"github.com/google/uuid"
)

// Request DTOs

type CreateDoctorRequest struct {
	FullName   string     `json:"nombre" validate:"required,notblank,min=2,max=200"`
	Initial    string     `json:"inicial" validate:"omitempty,max=4"`
	Type       string     `json:"tipo" validate:"required,oneof=informacion consulta"`
	CodePrefix string     `json:"code_prefix" validate:"omitempty,max=20"`
	UserID     *uuid.UUID `json:"user_id"`
}

type UpdateDoctorRequest struct {
	FullName string     `json:"nombre" validate:"omitempty,min=2,max=200"`
	Status   string     `json:"status" validate:"omitempty,oneof=disponible ocupado pausado no_disponible"`
	IsActive *bool      `json:"is_active"`
	UserID   *uuid.UUID `json:"user_id"`
}

// UpdateDoctorStatusRequest is the doctor's own availability toggle
type UpdateDoctorStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=disponible ocupado pausado no_disponible"`
}

// Response DTOs

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"nombre"`
	Initial    string    `json:"inicial"`
	Type       string    `json:"tipo"`
	CodePrefix string    `json:"code_prefix"`
	Status     string    `json:"status"`
	IsActive   bool      `json:"is_active"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"medicos"`
	Total   int              `json:"total"`
}

// DoctorQueueResponse is a doctor's own waiting list, in call order
type DoctorQueueResponse struct {
	Doctor   DoctorResponse         `json:"medico"`
	Patients []BoardPatientResponse `json:"pacientes"`
	Total    int                    `json:"total"`
}
