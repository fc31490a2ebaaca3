package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/data/pgxutil"
	"github.com/nordtolk/booking-api/internal/domain/model"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

const relationColumns = `id, job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by`

// RelationRepo provides database operations for translator-booking relations.
// A partial unique index allows at most one active relation per booking, so
// the acceptance race between translators is decided by the database.
type RelationRepo struct {
	DB *sql.DB
}

var _ core.RelationRepository = (*RelationRepo)(nil)

// NewRelationRepo creates a new RelationRepo.
func NewRelationRepo(db *sql.DB) *RelationRepo {
	return &RelationRepo{DB: db}
}

// GetActive retrieves the booking's active relation.
func (r *RelationRepo) GetActive(ctx context.Context, jobID string) (*model.TranslatorJobRelation, error) {
	var out model.TranslatorJobRelation
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+relationColumns+`
			FROM translator_job_relations
			WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL`,
			jobID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TranslatorJobRelation])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("no active relation for booking %s", jobID)
		}
		return nil, fmt.Errorf("get active relation: %w", err)
	}
	return &out, nil
}

// AssignIfUnassigned inserts a new active relation only when the booking has
// none. Returns false without error when another translator holds the
// booking, whether seen by the guard or by losing the insert race.
func (r *RelationRepo) AssignIfUnassigned(ctx context.Context, params core.AssignParams) (bool, error) {
	var inserted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			INSERT INTO translator_job_relations (id, job_id, translator_id, assigned_at)
			SELECT $1, $2, $3, $4
			WHERE NOT EXISTS (
				SELECT 1 FROM translator_job_relations
				WHERE job_id = $2 AND cancel_at IS NULL AND completed_at IS NULL
			)`,
			uuid.NewString(), params.JobID, params.TranslatorID, params.At.UTC())
		if err != nil {
			return err
		}
		inserted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("assign booking %s: %w", params.JobID, err)
	}
	return inserted > 0, nil
}

// Cancel marks the booking's active relation as cancelled.
func (r *RelationRepo) Cancel(ctx context.Context, jobID string, at time.Time) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE translator_job_relations SET cancel_at = $2
			WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL`,
			jobID, at.UTC())
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel relation for booking %s: %w", jobID, err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("no active relation for booking %s", jobID)
	}
	return nil
}

// Complete marks the booking's active relation as completed.
func (r *RelationRepo) Complete(ctx context.Context, params core.CompleteParams) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE translator_job_relations SET completed_at = $2, completed_by = $3
			WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL`,
			params.JobID, params.At.UTC(), params.CompletedBy)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete relation for booking %s: %w", params.JobID, err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("no active relation for booking %s", params.JobID)
	}
	return nil
}

// Delete removes the relation between a booking and a translator. Used by
// translator-initiated cancellation, which erases rather than cancels the
// relation so the booking reads as never assigned.
func (r *RelationRepo) Delete(ctx context.Context, jobID, translatorID string) error {
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			DELETE FROM translator_job_relations
			WHERE job_id = $1 AND translator_id = $2`,
			jobID, translatorID)
		return err
	}); err != nil {
		return fmt.Errorf("delete relation for booking %s: %w", jobID, err)
	}
	return nil
}

// HasOverlappingAssignment reports whether the translator holds an active
// relation on another booking whose session window intersects [due, due+duration).
func (r *RelationRepo) HasOverlappingAssignment(ctx context.Context, params core.OverlapParams) (bool, error) {
	windowStart := params.Due.UTC()
	windowEnd := windowStart.Add(params.Duration)

	var exists bool
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM translator_job_relations rel
				JOIN jobs j ON j.id = rel.job_id
				WHERE rel.translator_id = $1
				  AND rel.cancel_at IS NULL AND rel.completed_at IS NULL
				  AND j.due < $3
				  AND j.due + make_interval(mins => j.duration) > $2
			)`,
			params.TranslatorID, windowStart, windowEnd,
		).Scan(&exists)
	}); err != nil {
		return false, fmt.Errorf("overlap check for translator %s: %w", params.TranslatorID, err)
	}
	return exists, nil
}
