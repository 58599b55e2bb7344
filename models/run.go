package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SweepRun records one execution of the synchronization task over a
// tracked location.
type SweepRun struct {
	ID               int64           `json:"id" db:"id"`
	Location         string          `json:"location" db:"location"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at" db:"finished_at"`
	Status           RunStatus       `json:"status" db:"status"`
	ListingsFound    int             `json:"listings_found" db:"listings_found"`
	ApartmentsNew    int             `json:"apartments_new" db:"apartments_new"`
	SnapshotsWritten int             `json:"snapshots_written" db:"snapshots_written"`
	ErrorsCount      int             `json:"errors_count" db:"errors_count"`
	ErrorMessage     string          `json:"error_message" db:"error_message"`
	Metadata         json.RawMessage `json:"metadata" db:"metadata"`
}
