package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// WorkloadRepository persists per-operator workload records.
type WorkloadRepository interface {
	GetByOperator(ctx context.Context, operatorID int64) (*domain.OperatorWorkload, error)
	Save(ctx context.Context, workload *domain.OperatorWorkload) error
	ListAvailable(ctx context.Context) ([]domain.OperatorWorkload, error)
	ListByCategoryExpertise(ctx context.Context, category domain.TicketCategory) ([]domain.OperatorWorkload, error)
}

type workloadRepository struct {
	pool *pgxpool.Pool
}

// NewWorkloadRepository instantiates the repository.
func NewWorkloadRepository(pool *pgxpool.Pool) WorkloadRepository {
	return &workloadRepository{pool: pool}
}

func (r *workloadRepository) GetByOperator(ctx context.Context, operatorID int64) (*domain.OperatorWorkload, error) {
	const query = `
        SELECT operator_id, active_tickets, total_tickets, available, last_activity_at, created_at, updated_at
        FROM operator_workloads WHERE operator_id=$1`

	var w domain.OperatorWorkload
	if err := r.pool.QueryRow(ctx, query, operatorID).Scan(
		&w.OperatorID,
		&w.ActiveTickets,
		&w.TotalTickets,
		&w.Available,
		&w.LastActivityAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := r.loadExpertise(ctx, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Save upserts the workload record and replaces its expertise set.
func (r *workloadRepository) Save(ctx context.Context, workload *domain.OperatorWorkload) error {
	const query = `
        INSERT INTO operator_workloads (operator_id, active_tickets, total_tickets, available, last_activity_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (operator_id) DO UPDATE SET
            active_tickets=EXCLUDED.active_tickets,
            total_tickets=EXCLUDED.total_tickets,
            available=EXCLUDED.available,
            last_activity_at=EXCLUDED.last_activity_at,
            updated_at=NOW()
        RETURNING created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		workload.OperatorID,
		workload.ActiveTickets,
		workload.TotalTickets,
		workload.Available,
		workload.LastActivityAt,
	).Scan(&workload.CreatedAt, &workload.UpdatedAt); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM operator_expertise WHERE operator_id=$1`, workload.OperatorID); err != nil {
		return err
	}
	for _, e := range workload.Expertise {
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO operator_expertise (operator_id, category, level) VALUES ($1,$2,$3)`,
			workload.OperatorID, e.Category, e.Level,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListAvailable returns available operators ordered by active load ascending.
func (r *workloadRepository) ListAvailable(ctx context.Context) ([]domain.OperatorWorkload, error) {
	const query = `
        SELECT operator_id, active_tickets, total_tickets, available, last_activity_at, created_at, updated_at
        FROM operator_workloads WHERE available=TRUE
        ORDER BY active_tickets ASC, operator_id ASC`
	return r.list(ctx, query)
}

func (r *workloadRepository) ListByCategoryExpertise(ctx context.Context, category domain.TicketCategory) ([]domain.OperatorWorkload, error) {
	const query = `
        SELECT w.operator_id, w.active_tickets, w.total_tickets, w.available, w.last_activity_at, w.created_at, w.updated_at
        FROM operator_workloads w
        JOIN operator_expertise e ON e.operator_id = w.operator_id
        WHERE e.category=$1
        ORDER BY e.level DESC, w.active_tickets ASC`
	return r.list(ctx, query, category)
}

func (r *workloadRepository) list(ctx context.Context, query string, args ...any) ([]domain.OperatorWorkload, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workloads, err := scanWorkloads(rows)
	if err != nil {
		return nil, err
	}
	for i := range workloads {
		if err := r.loadExpertise(ctx, &workloads[i]); err != nil {
			return nil, err
		}
	}
	return workloads, nil
}

func (r *workloadRepository) loadExpertise(ctx context.Context, w *domain.OperatorWorkload) error {
	const query = `
        SELECT category, level FROM operator_expertise
        WHERE operator_id=$1 ORDER BY category ASC`
	rows, err := r.pool.Query(ctx, query, w.OperatorID)
	if err != nil {
		return err
	}
	defer rows.Close()

	w.Expertise = nil
	for rows.Next() {
		var e domain.CategoryExpertise
		if err := rows.Scan(&e.Category, &e.Level); err != nil {
			return err
		}
		w.Expertise = append(w.Expertise, e)
	}
	return rows.Err()
}

func scanWorkloads(rows pgx.Rows) ([]domain.OperatorWorkload, error) {
	var result []domain.OperatorWorkload
	for rows.Next() {
		var w domain.OperatorWorkload
		if err := rows.Scan(
			&w.OperatorID,
			&w.ActiveTickets,
			&w.TotalTickets,
			&w.Available,
			&w.LastActivityAt,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
