package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/panelbot/internal/domain/cleanup"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// RunRepository implements cleanup.RunRepository for PostgreSQL/SQLite
type RunRepository struct {
	db     *sql.DB
	driver string
}

// NewRunRepository creates a new run repository. driver selects the
// placeholder style: "postgres" uses $n, anything else uses ?.
func NewRunRepository(db *sql.DB, driver string) *RunRepository {
	return &RunRepository{db: db, driver: driver}
}

const runColumns = `id, task_id, server_id, intent, trigger_kind, admins, status, started_at, finished_at,
	total_users, total_operations, total_deleted, successful, failed, skipped, error_message`

// CreateRun stores a finished run
func (r *RunRepository) CreateRun(ctx context.Context, run *cleanup.Run) error {
	defer observe("insert", time.Now())

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	admins, err := json.Marshal(run.Admins)
	if err != nil {
		admins = []byte("[]")
	}

	query := r.rebind(`
		INSERT INTO bulk_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		nullString(run.TaskID),
		run.ServerID,
		string(run.Intent),
		string(run.Trigger),
		string(admins),
		string(run.Status),
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.TotalUsers,
		run.TotalOperations,
		run.TotalDeleted,
		run.Successful,
		run.Failed,
		run.Skipped,
		nullString(run.Error),
	)
	if err != nil {
		return errors.DatabaseError("Failed to create run record", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*cleanup.Run, error) {
	defer observe("select", time.Now())

	query := r.rebind(`SELECT ` + runColumns + ` FROM bulk_runs WHERE id = ?`)
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Run")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get run", err)
	}
	return run, nil
}

// ListRuns lists runs newest first with optional filters
func (r *RunRepository) ListRuns(ctx context.Context, filter cleanup.RunFilter, limit, offset int) ([]*cleanup.Run, int64, error) {
	defer observe("select", time.Now())

	where := []string{"1=1"}
	var args []interface{}
	if filter.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.ServerID != "" {
		where = append(where, "server_id = ?")
		args = append(args, filter.ServerID)
	}
	if filter.Intent != "" {
		where = append(where, "intent = ?")
		args = append(args, string(filter.Intent))
	}
	if filter.From != nil {
		where = append(where, "started_at >= ?")
		args = append(args, filter.From.UTC())
	}
	clause := strings.Join(where, " AND ")

	var total int64
	countQuery := r.rebind("SELECT COUNT(*) FROM bulk_runs WHERE " + clause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("Failed to count runs", err)
	}

	if limit <= 0 {
		limit = 20
	}
	query := r.rebind(`SELECT ` + runColumns + ` FROM bulk_runs WHERE ` + clause +
		` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list runs", err)
	}
	defer rows.Close()

	runs := make([]*cleanup.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.DatabaseError("Failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.DatabaseError("Failed to iterate runs", err)
	}
	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*cleanup.Run, error) {
	var (
		run             cleanup.Run
		taskID, errText sql.NullString
		intent, trigger string
		status, admins  string
	)
	err := row.Scan(
		&run.ID,
		&taskID,
		&run.ServerID,
		&intent,
		&trigger,
		&admins,
		&status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.TotalUsers,
		&run.TotalOperations,
		&run.TotalDeleted,
		&run.Successful,
		&run.Failed,
		&run.Skipped,
		&errText,
	)
	if err != nil {
		return nil, err
	}
	run.TaskID = taskID.String
	run.Error = errText.String
	run.Intent = cleanup.Intent(intent)
	run.Trigger = cleanup.Trigger(trigger)
	run.Status = cleanup.RunStatus(status)
	if err := json.Unmarshal([]byte(admins), &run.Admins); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", err)
	}
	return &run, nil
}

// rebind rewrites ? placeholders as $1..$n for PostgreSQL
func (r *RunRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func observe(op string, start time.Time) {
	metrics.RecordDBQuery(op, "bulk_runs", time.Since(start))
}
