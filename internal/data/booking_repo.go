package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/data/pgxutil"
	"github.com/nordtolk/booking-api/internal/domain/model"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

// jobColumns is the canonical column list for booking queries; it must match
// the db tags on model.Job for pgx row collection.
const jobColumns = `
	id, customer_id, status, job_type, immediate, due, duration, from_language_id,
	gender, certified, customer_phone_type, customer_physical_type, town,
	user_email, reference, address, instructions, admin_comments, flagged,
	by_admin, specific_translator_id, session_time, email_sent_count,
	reminder_email_count, created_at, will_expire_at, end_at, withdraw_at, updated_at`

// BookingRepo provides database operations for bookings.
type BookingRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.JobRepository = (*BookingRepo)(nil)

// NewBookingRepo creates a new BookingRepo with the real time provider.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewBookingRepoWithTimeProvider creates a new BookingRepo with a custom time
// provider (useful for tests).
func NewBookingRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *BookingRepo {
	return &BookingRepo{DB: db, timeProvider: tp}
}

// Create inserts a new booking, assigning an id when the caller left it empty.
func (r *BookingRepo) Create(ctx context.Context, job *model.Job) (*model.Job, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := r.timeProvider.Now().UTC()

	var out model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO jobs (
				id, customer_id, status, job_type, immediate, due, duration,
				from_language_id, gender, certified, customer_phone_type,
				customer_physical_type, town, user_email, reference, address,
				instructions, admin_comments, flagged, by_admin,
				specific_translator_id, session_time, email_sent_count,
				reminder_email_count, created_at, will_expire_at, end_at,
				withdraw_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
				$27, $28, $29
			) RETURNING`+jobColumns,
			id, job.CustomerID, job.Status, job.JobType, job.Immediate, job.Due,
			job.Duration, job.FromLanguageID, job.Gender, job.Certified,
			job.CustomerPhoneType, job.CustomerPhysicalType, job.Town,
			job.UserEmail, job.Reference, job.Address, job.Instructions,
			job.AdminComments, job.Flagged, job.ByAdmin,
			job.SpecificTranslatorID, job.SessionTime, job.EmailSentCount,
			job.ReminderEmailCount, job.CreatedAt, job.WillExpireAt, job.EndAt,
			job.WithdrawAt, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return err
	}); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var out model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("booking %s not found", id)
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return &out, nil
}

// Update persists all mutable booking fields.
func (r *BookingRepo) Update(ctx context.Context, job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	now := r.timeProvider.Now().UTC()

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE jobs SET
				status = $2, job_type = $3, immediate = $4, due = $5,
				duration = $6, from_language_id = $7, gender = $8,
				certified = $9, customer_phone_type = $10,
				customer_physical_type = $11, town = $12, user_email = $13,
				reference = $14, address = $15, instructions = $16,
				admin_comments = $17, flagged = $18,
				specific_translator_id = $19, session_time = $20,
				email_sent_count = $21, reminder_email_count = $22,
				created_at = $23, will_expire_at = $24, end_at = $25,
				withdraw_at = $26, updated_at = $27
			WHERE id = $1`,
			job.ID, job.Status, job.JobType, job.Immediate, job.Due,
			job.Duration, job.FromLanguageID, job.Gender, job.Certified,
			job.CustomerPhoneType, job.CustomerPhysicalType, job.Town,
			job.UserEmail, job.Reference, job.Address, job.Instructions,
			job.AdminComments, job.Flagged, job.SpecificTranslatorID,
			job.SessionTime, job.EmailSentCount, job.ReminderEmailCount,
			job.CreatedAt, job.WillExpireAt, job.EndAt, job.WithdrawAt, now,
		)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("update booking %s: %w", job.ID, err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("booking %s not found", job.ID)
	}
	return nil
}

// SetUserEmail stores the billing contact on a booking. Empty address,
// instructions and town leave the stored values unchanged.
func (r *BookingRepo) SetUserEmail(ctx context.Context, params core.SetUserEmailParams) (*model.Job, error) {
	var out model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE jobs SET
				user_email = $2,
				reference = $3,
				address = COALESCE(NULLIF($4, ''), address),
				instructions = COALESCE(NULLIF($5, ''), instructions),
				town = COALESCE(NULLIF($6, ''), town),
				updated_at = $7
			WHERE id = $1
			RETURNING`+jobColumns,
			params.JobID, params.UserEmail, params.Reference, params.Address,
			params.Instructions, params.Town, r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("booking %s not found", params.JobID)
		}
		return nil, fmt.Errorf("set billing contact on booking %s: %w", params.JobID, err)
	}
	return &out, nil
}

// ListPending returns pending bookings, newest first.
func (r *BookingRepo) ListPending(ctx context.Context) ([]*model.Job, error) {
	var rowsOut []model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT`+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at DESC`,
			model.JobStatusPending)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Job])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list pending bookings: %w", err)
	}

	res := make([]*model.Job, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ExpirePending marks pending bookings whose expiry passed as timedout and
// returns them. Rows are locked with SKIP LOCKED so concurrent sweepers do
// not double-process a batch.
func (r *BookingRepo) ExpirePending(ctx context.Context, now time.Time, batchSize int) ([]*model.Job, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var rowsOut []model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE jobs SET status = $1, updated_at = $2
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = $3 AND will_expire_at <= $2
				ORDER BY will_expire_at
				LIMIT $4
				FOR UPDATE SKIP LOCKED
			)
			RETURNING`+jobColumns,
			model.JobStatusTimedout, now.UTC(), model.JobStatusPending, batchSize,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Job])
		return err
	}); err != nil {
		return nil, fmt.Errorf("expire pending bookings: %w", err)
	}

	res := make([]*model.Job, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}
