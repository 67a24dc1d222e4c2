package domain

import "time"

type RunStage string

const (
	StageUrban RunStage = "urban"
	StageShape RunStage = "shape"
	StageDone  RunStage = "done"
)

// RunProgress 是运行中任务的实时进度，保存在 redis 中
type RunProgress struct {
	Stage       RunStage  `json:"stage"`
	Subject     string    `json:"subject,omitempty"` // 形体优化阶段正在处理的建筑
	Generation  int       `json:"generation"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"bestFitness"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
