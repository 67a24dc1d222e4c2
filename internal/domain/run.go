package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Status      RunStatus       `json:"status"`
	Scenario    Scenario        `json:"scenario"`
	Result      json.RawMessage `json:"result,omitempty"`
	Report      string          `json:"-"`
	BestFitness *float64        `json:"bestFitness"`
	Error       string          `json:"error,omitempty"`
	CreatedBy   int64           `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt"`
	FinishedAt  *time.Time      `json:"finishedAt"`
	Version     int32           `json:"-"`
}

const OptimizationQueue = "optimization_queue"

// OptimizationTask 是 api 投递给 worker 的消息
type OptimizationTask struct {
	RunID uuid.UUID `json:"runID"`
}
