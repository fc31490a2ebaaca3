package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/data/pgxutil"
	"github.com/nordtolk/booking-api/internal/domain/model"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

// DirectoryRepo provides read access to user accounts and translator
// profiles. Profiles are assembled from the normalized attribute tables
// (languages, levels, towns, blacklist) in grouped queries.
type DirectoryRepo struct {
	DB *sql.DB
}

var _ core.TranslatorDirectory = (*DirectoryRepo)(nil)

// NewDirectoryRepo creates a new DirectoryRepo.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{DB: db}
}

// GetProfile retrieves a translator profile by user id.
func (r *DirectoryRepo) GetProfile(ctx context.Context, id string) (*model.TranslatorProfile, error) {
	profiles, err := r.loadProfiles(ctx, `WHERE u.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperrors.NotFoundf("translator %s not found", id)
	}
	return profiles[0], nil
}

// ListActive retrieves all active translator profiles.
func (r *DirectoryRepo) ListActive(ctx context.Context) ([]*model.TranslatorProfile, error) {
	return r.loadProfiles(ctx, `WHERE p.active`)
}

// GetUser retrieves a user account by id.
func (r *DirectoryRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user account by email.
func (r *DirectoryRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (r *DirectoryRepo) getUser(ctx context.Context, where string, arg string) (*model.User, error) {
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT id, name, email, mobile, consumer_type FROM users `+where, arg,
		).Scan(&out.ID, &out.Name, &out.Email, &out.Mobile, &out.ConsumerType)
		if err != nil {
			return err
		}
		rows, err := conn.Query(ctx, `SELECT town FROM user_towns WHERE user_id = $1`, out.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out.Towns, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundf("user %s not found", arg)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &out, nil
}

// loadProfiles loads profile base rows matching the where clause, then fills
// the multi-valued attributes with one grouped query per table. The queries
// run in a read-only repeatable-read transaction so the base rows and their
// attributes come from one snapshot.
func (r *DirectoryRepo) loadProfiles(ctx context.Context, where string, args ...any) ([]*model.TranslatorProfile, error) {
	var profiles []*model.TranslatorProfile
	byID := make(map[string]*model.TranslatorProfile)

	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Opts: txOpts, Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT u.id, u.name, u.email, u.mobile, p.translator_type, p.gender,
			       p.not_get_notification, p.not_get_emergency, p.not_get_nighttime
			FROM translator_profiles p
			JOIN users u ON u.id = p.user_id `+where, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p model.TranslatorProfile
			if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Mobile, &p.Type,
				&p.Gender, &p.NotGetNotification, &p.NotGetEmergency, &p.NotGetNighttime); err != nil {
				return err
			}
			profiles = append(profiles, &p)
			byID[p.ID] = &p
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(profiles) == 0 {
			return nil
		}

		ids := make([]string, 0, len(profiles))
		for _, p := range profiles {
			ids = append(ids, p.ID)
		}

		attrs := []struct {
			query  string
			assign func(p *model.TranslatorProfile, v string)
		}{
			{
				query:  `SELECT user_id, language_id FROM translator_languages WHERE user_id = ANY($1)`,
				assign: func(p *model.TranslatorProfile, v string) { p.Languages = append(p.Languages, v) },
			},
			{
				query: `SELECT user_id, level FROM translator_levels WHERE user_id = ANY($1)`,
				assign: func(p *model.TranslatorProfile, v string) {
					p.Levels = append(p.Levels, model.TranslatorLevel(v))
				},
			},
			{
				query:  `SELECT user_id, town FROM user_towns WHERE user_id = ANY($1)`,
				assign: func(p *model.TranslatorProfile, v string) { p.Towns = append(p.Towns, v) },
			},
			{
				query:  `SELECT translator_id, customer_id FROM translator_blacklist WHERE translator_id = ANY($1)`,
				assign: func(p *model.TranslatorProfile, v string) { p.BlacklistedBy = append(p.BlacklistedBy, v) },
			},
		}
		for _, attr := range attrs {
			if err := collectAttr(ctx, tx, attr.query, ids, byID, attr.assign); err != nil {
				return err
			}
		}
		return nil
	}})
	if err != nil {
		return nil, fmt.Errorf("load translator profiles: %w", err)
	}
	return profiles, nil
}

func collectAttr(
	ctx context.Context,
	tx pgx.Tx,
	query string,
	ids []string,
	byID map[string]*model.TranslatorProfile,
	assign func(p *model.TranslatorProfile, v string),
) error {
	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var userID, value string
		if err := rows.Scan(&userID, &value); err != nil {
			return err
		}
		if p, ok := byID[userID]; ok {
			assign(p, value)
		}
	}
	return rows.Err()
}
