package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DoctorStatsResponse struct {
	DoctorID    uuid.UUID       `json:"medico_id"`
	Doctor      string          `json:"medico"`
	Tickets     int64           `json:"pacientes"`
	Issued      int64           `json:"turnos_emitidos"`
	Reissued    int64           `json:"reimpresiones"`
	Cancelled   int64           `json:"cancelados"`
	ReissueRate decimal.Decimal `json:"tasa_reimpresion"`
	Share       decimal.Decimal `json:"participacion"`
}

type DailyStatsResponse struct {
	Date        string                `json:"fecha"`
	Tickets     int64                 `json:"total_pacientes"`
	Issued      int64                 `json:"total_turnos"`
	Trashed     int64                 `json:"en_papelera"`
	Deleted     int64                 `json:"eliminados"`
	ReissueRate decimal.Decimal       `json:"tasa_reimpresion"`
	Doctors     []DoctorStatsResponse `json:"medicos"`
}
