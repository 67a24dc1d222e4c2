package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/google/uuid"
)

func (r *Repository) CreateRun(run *domain.Run) error {
	scenario, err := json.Marshal(run.Scenario)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (id, name, status, scenario, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{run.ID, run.Name, run.Status, string(scenario), run.CreatedBy}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt, &run.Version)
}

func (r *Repository) GetRunByID(id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT
			name,
			status,
			scenario,
			result,
			best_fitness,
			error,
			created_by,
			created_at,
			started_at,
			finished_at,
			version
		FROM runs WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	run := &domain.Run{ID: id}
	var scenario, result []byte
	dst := []any{
		&run.Name,
		&run.Status,
		&scenario,
		&result,
		&run.BestFitness,
		&run.Error,
		&run.CreatedBy,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scenario, &run.Scenario); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		run.Result = json.RawMessage(result)
	}

	return run, nil
}

const runSummaryColumns = `id, name, status, best_fitness, error, created_by, created_at, started_at, finished_at, version`

// GetAllRuns 返回运行列表，不包含场景和结果以减少传输量
func (r *Repository) GetAllRuns() ([]*domain.Run, error) {
	return r.listRuns(`SELECT ` + runSummaryColumns + ` FROM runs ORDER BY created_at DESC`)
}

func (r *Repository) GetRunsByCreator(userID int64) ([]*domain.Run, error) {
	return r.listRuns(`SELECT `+runSummaryColumns+` FROM runs WHERE created_by = $1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) listRuns(query string, args ...any) ([]*domain.Run, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.Run{}
	for rows.Next() {
		var run domain.Run
		dst := []any{
			&run.ID,
			&run.Name,
			&run.Status,
			&run.BestFitness,
			&run.Error,
			&run.CreatedBy,
			&run.CreatedAt,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// StartRun 只会把排队中的运行标记为运行中，其余状态返回 sql.ErrNoRows
func (r *Repository) StartRun(run *domain.Run) error {
	query := `
		UPDATE runs
		SET
			status = $1,
			started_at = $2,
			version = version + 1
		WHERE id = $3 AND status = $4
		RETURNING started_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{domain.RunStatusRunning, time.Now(), run.ID, domain.RunStatusQueued}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.StartedAt, &run.Version); err != nil {
		return err
	}
	run.Status = domain.RunStatusRunning

	return nil
}

// ResetRun 把运行中的任务放回排队状态
func (r *Repository) ResetRun(run *domain.Run) error {
	query := `
		UPDATE runs
		SET
			status = $1,
			started_at = NULL,
			version = version + 1
		WHERE id = $2 AND status = $3
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{domain.RunStatusQueued, run.ID, domain.RunStatusRunning}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Version); err != nil {
		return err
	}
	run.Status = domain.RunStatusQueued
	run.StartedAt = nil

	return nil
}

// FinishRun 保存运行的最终状态、结果和报告
func (r *Repository) FinishRun(run *domain.Run) error {
	var result any
	if len(run.Result) > 0 {
		result = string(run.Result)
	}

	query := `
		UPDATE runs
		SET
			status = $1,
			result = $2,
			report = $3,
			best_fitness = $4,
			error = $5,
			finished_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING finished_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{run.Status, result, run.Report, run.BestFitness, run.Error, time.Now(), run.ID, run.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.FinishedAt, &run.Version)
}

func (r *Repository) GetRunReport(id uuid.UUID) (string, error) {
	query := `SELECT report FROM runs WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	var report string
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&report); err != nil {
		return "", err
	}

	return report, nil
}

// DeleteRun 不允许删除运行中的任务
func (r *Repository) DeleteRun(id uuid.UUID) error {
	query := `DELETE FROM runs WHERE id = $1 AND status <> $2`

	ctx, cancel := r.queryContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id, domain.RunStatusRunning)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
