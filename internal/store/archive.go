package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jatlaoui/ines/internal/domain"
)

// ArchiveStore persists finished task records, their stage traces, and
// artifact references in SQLite. Tasks are archived once after export;
// stages may also be written incrementally as phases complete.
type ArchiveStore struct {
	db *sql.DB
}

// NewArchiveStore creates an archive store on the given database handle. The
// handle must come from NewDB so the schema exists.
func NewArchiveStore(db *sql.DB) (*ArchiveStore, error) {
	if db == nil {
		return nil, errors.New("database handle must not be nil")
	}
	return &ArchiveStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *ArchiveStore) Close() error { return s.db.Close() }

// SaveTask upserts the task row and every embedded stage in one transaction.
func (s *ArchiveStore) SaveTask(ctx context.Context, rec domain.TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid task record: %w", err)
	}

	requestJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO tasks (task_id, tenant_id, request_json, status, failure_phase, failure_kind, created_at_unix, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
	status = excluded.status,
	failure_phase = excluded.failure_phase,
	failure_kind = excluded.failure_kind,
	updated_at_unix = excluded.updated_at_unix`

	_, err = tx.ExecContext(ctx, q,
		rec.TaskID,
		rec.TenantID,
		string(requestJSON),
		string(rec.Status),
		string(rec.FailurePhase),
		string(rec.FailureKind),
		rec.CreatedAt.Unix(),
		rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	for _, stage := range rec.Stages {
		if err := saveStageTx(ctx, tx, rec.TaskID, stage); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// GetTask retrieves a task record with its stage trace reassembled in
// execution order.
func (s *ArchiveStore) GetTask(ctx context.Context, taskID string) (domain.TaskRecord, error) {
	const q = `SELECT task_id, tenant_id, request_json, status, failure_phase, failure_kind, created_at_unix, updated_at_unix
FROM tasks WHERE task_id = ?`

	row := s.db.QueryRowContext(ctx, q, taskID)

	var rec domain.TaskRecord
	var requestJSON, status, failurePhase, failureKind string
	var createdAt, updatedAt int64
	err := row.Scan(&rec.TaskID, &rec.TenantID, &requestJSON, &status, &failurePhase, &failureKind, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TaskRecord{}, domain.NewNotFoundError("task", taskID)
		}
		return domain.TaskRecord{}, fmt.Errorf("get task: %w", err)
	}

	if err := json.Unmarshal([]byte(requestJSON), &rec.Request); err != nil {
		return domain.TaskRecord{}, fmt.Errorf("decode request for task %q: %w", taskID, err)
	}
	rec.Status = domain.TaskStatus(status)
	rec.FailurePhase = domain.PhaseKind(failurePhase)
	rec.FailureKind = domain.FailureKind(failureKind)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	stages, err := s.loadStages(ctx, taskID)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	rec.Stages = stages
	return rec, nil
}

// SaveStage upserts one stage trace for the task.
func (s *ArchiveStore) SaveStage(ctx context.Context, taskID string, stage domain.StageResult) error {
	if taskID == "" {
		return errors.New("task id must not be empty")
	}
	if err := stage.Validate(); err != nil {
		return fmt.Errorf("invalid stage result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage tx: %w", err)
	}
	defer tx.Rollback()

	if err := saveStageTx(ctx, tx, taskID, stage); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stage tx: %w", err)
	}
	return nil
}

func saveStageTx(ctx context.Context, tx *sql.Tx, taskID string, stage domain.StageResult) error {
	outputsJSON, err := json.Marshal(stage.Outputs)
	if err != nil {
		return fmt.Errorf("encode stage outputs: %w", err)
	}
	warningsJSON, err := json.Marshal(stage.Warnings)
	if err != nil {
		return fmt.Errorf("encode stage warnings: %w", err)
	}

	const q = `INSERT INTO stages (task_id, phase, outputs_json, progress, started_at_unix, completed_at_unix, warnings_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id, phase) DO UPDATE SET
	outputs_json = excluded.outputs_json,
	progress = excluded.progress,
	started_at_unix = excluded.started_at_unix,
	completed_at_unix = excluded.completed_at_unix,
	warnings_json = excluded.warnings_json`

	_, err = tx.ExecContext(ctx, q,
		taskID,
		string(stage.Phase),
		string(outputsJSON),
		stage.Progress,
		stage.StartedAt.Unix(),
		stage.CompletedAt.Unix(),
		string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("save stage %s: %w", stage.Phase, err)
	}
	return nil
}

// GetStage retrieves one stage trace by task and phase.
func (s *ArchiveStore) GetStage(ctx context.Context, taskID string, phase domain.PhaseKind) (domain.StageResult, error) {
	const q = `SELECT phase, outputs_json, progress, started_at_unix, completed_at_unix, warnings_json
FROM stages WHERE task_id = ? AND phase = ?`

	row := s.db.QueryRowContext(ctx, q, taskID, string(phase))

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StageResult{}, domain.NewNotFoundError("stage", fmt.Sprintf("%s/%s", taskID, phase))
		}
		return domain.StageResult{}, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

func (s *ArchiveStore) loadStages(ctx context.Context, taskID string) ([]domain.StageResult, error) {
	const q = `SELECT phase, outputs_json, progress, started_at_unix, completed_at_unix, warnings_json
FROM stages WHERE task_id = ? ORDER BY started_at_unix, id`

	rows, err := s.db.QueryContext(ctx, q, taskID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.StageResult
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return stages, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStage(row rowScanner) (domain.StageResult, error) {
	var stage domain.StageResult
	var phase, outputsJSON, warningsJSON string
	var startedAt, completedAt int64
	if err := row.Scan(&phase, &outputsJSON, &stage.Progress, &startedAt, &completedAt, &warningsJSON); err != nil {
		return domain.StageResult{}, err
	}

	stage.Phase = domain.PhaseKind(phase)
	stage.StartedAt = time.Unix(startedAt, 0).UTC()
	stage.CompletedAt = time.Unix(completedAt, 0).UTC()
	if err := json.Unmarshal([]byte(outputsJSON), &stage.Outputs); err != nil {
		return domain.StageResult{}, fmt.Errorf("decode stage outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &stage.Warnings); err != nil {
		return domain.StageResult{}, fmt.Errorf("decode stage warnings: %w", err)
	}
	return stage, nil
}

// SaveArtifact records an artifact reference for the task. Re-saving the same
// key updates kind and size.
func (s *ArchiveStore) SaveArtifact(ctx context.Context, taskID string, ref domain.ArtifactRef) error {
	if taskID == "" {
		return errors.New("task id must not be empty")
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("invalid artifact ref: %w", err)
	}

	const q = `INSERT INTO artifacts (task_id, key, kind, size, created_at_unix)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(task_id, key) DO UPDATE SET
	kind = excluded.kind,
	size = excluded.size`

	_, err := s.db.ExecContext(ctx, q, taskID, ref.Key, string(ref.Kind), ref.Size, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save artifact %q: %w", ref.Key, err)
	}
	return nil
}

// GetArtifacts lists the artifact references recorded for the task, oldest
// first. The task must exist; a task without artifacts yields an empty list.
func (s *ArchiveStore) GetArtifacts(ctx context.Context, taskID string) ([]domain.ArtifactRef, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE task_id = ?`, taskID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check task: %w", err)
	}
	if exists == 0 {
		return nil, domain.NewNotFoundError("task", taskID)
	}

	const q = `SELECT key, kind, size FROM artifacts WHERE task_id = ? ORDER BY created_at_unix, id`

	rows, err := s.db.QueryContext(ctx, q, taskID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	refs := make([]domain.ArtifactRef, 0, 8)
	for rows.Next() {
		var ref domain.ArtifactRef
		var kind string
		if err := rows.Scan(&ref.Key, &kind, &ref.Size); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		ref.Kind = domain.ArtifactKind(kind)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return refs, nil
}

// ListRecentTasks returns up to n task rows, newest first. Stage traces are
// not loaded; use GetTask for the full record.
func (s *ArchiveStore) ListRecentTasks(ctx context.Context, n int) ([]domain.TaskRecord, error) {
	if n <= 0 {
		return nil, errors.New("limit must be positive")
	}

	const q = `SELECT task_id, tenant_id, request_json, status, failure_phase, failure_kind, created_at_unix, updated_at_unix
FROM tasks ORDER BY created_at_unix DESC, task_id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.TaskRecord, 0, n)
	for rows.Next() {
		var rec domain.TaskRecord
		var requestJSON, status, failurePhase, failureKind string
		var createdAt, updatedAt int64
		if err := rows.Scan(&rec.TaskID, &rec.TenantID, &requestJSON, &status, &failurePhase, &failureKind, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(requestJSON), &rec.Request); err != nil {
			return nil, fmt.Errorf("decode request for task %q: %w", rec.TaskID, err)
		}
		rec.Status = domain.TaskStatus(status)
		rec.FailurePhase = domain.PhaseKind(failurePhase)
		rec.FailureKind = domain.FailureKind(failureKind)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		tasks = append(tasks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
