package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdSweepNow      CommandType = "sweep_now"
	CmdSweepLocation CommandType = "sweep_location"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
	CmdRunDetail     CommandType = "run_detail"
	CmdRunThumbnails CommandType = "run_thumbnails"
)

// Command is an operator command queued in the operational store and
// picked up by the scheduler's poll loop.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Location string `json:"location,omitempty"`
}
