package internal

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

/* ===================== CONNECT ===================== */

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func MustDB(url string, log *zap.Logger) *pgxpool.Pool {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Fatal("parse DATABASE_URL", zap.Error(err))
	}
	cfg.MaxConns = 10

	var pool *pgxpool.Pool

	deadline := time.Now().Add(30 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				break
			}
			pool.Close()
			err = ctx.Err()
		}
		cancel()

		if time.Now().After(deadline) {
			log.Fatal("failed to connect DB after retries", zap.Error(err))
		}
		time.Sleep(1 * time.Second)
	}

	return pool
}

/* ===================== APPLICATIONS ===================== */

// seq records insertion order for listing; an upsert leaves it alone so
// overwritten records keep their position.
const applicationsSchema = `
CREATE TABLE IF NOT EXISTS applications (
	seq               BIGSERIAL,
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL DEFAULT '',
	full_name         TEXT NOT NULL DEFAULT '',
	position          TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	license_number    TEXT NOT NULL DEFAULT '',
	experience        TEXT NOT NULL DEFAULT '',
	motivation        TEXT NOT NULL DEFAULT '',
	experience_detail TEXT NOT NULL DEFAULT '',
	user_avatar       TEXT NOT NULL DEFAULT '',
	webhook_url       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT '',
	reviewed_at       TEXT NOT NULL DEFAULT '',
	reviewed_by       TEXT NOT NULL DEFAULT ''
)`

var appColumns = []string{
	"id", "user_id", "full_name", "position", "email", "license_number",
	"experience", "motivation", "experience_detail", "user_avatar",
	"webhook_url", "status", "reviewed_at", "reviewed_by",
}

// PGStore is the optional durable store, selected when DATABASE_URL is
// set. Same contract as MemStore.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(ctx context.Context, db *pgxpool.Pool) (*PGStore, error) {
	if _, err := db.Exec(ctx, applicationsSchema); err != nil {
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Put(ctx context.Context, app Application) (Application, error) {
	if app.ID == "" {
		return Application{}, ErrMissingID
	}
	q := psql.Insert("applications").
		Columns(appColumns...).
		Values(app.ID, app.UserID, app.FullName, app.Position, app.Email,
			app.LicenseNumber, string(app.Experience), app.Motivation,
			app.ExperienceDetail, app.UserAvatar, app.WebhookURL,
			app.Status, app.ReviewedAt, app.ReviewedBy).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			user_id=EXCLUDED.user_id, full_name=EXCLUDED.full_name,
			position=EXCLUDED.position, email=EXCLUDED.email,
			license_number=EXCLUDED.license_number, experience=EXCLUDED.experience,
			motivation=EXCLUDED.motivation, experience_detail=EXCLUDED.experience_detail,
			user_avatar=EXCLUDED.user_avatar, webhook_url=EXCLUDED.webhook_url,
			status=EXCLUDED.status, reviewed_at=EXCLUDED.reviewed_at,
			reviewed_by=EXCLUDED.reviewed_by`)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Application{}, err
	}
	if _, err := s.db.Exec(ctx, sqlStr, args...); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *PGStore) All(ctx context.Context) ([]Application, error) {
	return s.queryApps(ctx, s.selectApps())
}

func (s *PGStore) ByOwner(ctx context.Context, userID string) ([]Application, error) {
	return s.queryApps(ctx, s.selectApps().Where(sq.Eq{"user_id": userID}))
}

func (s *PGStore) UpdateStatus(ctx context.Context, id, status, reviewedBy string) (Application, error) {
	q := psql.Update("applications").
		Set("status", status).
		Set("reviewed_at", nowISO()).
		Set("reviewed_by", reviewedBy).
		Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Application{}, err
	}
	tag, err := s.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return Application{}, err
	}
	if tag.RowsAffected() == 0 {
		return Application{}, ErrNotFound
	}

	apps, err := s.queryApps(ctx, s.selectApps().Where(sq.Eq{"id": id}))
	if err != nil {
		return Application{}, err
	}
	if len(apps) == 0 {
		return Application{}, ErrNotFound
	}
	return apps[0], nil
}

func (s *PGStore) selectApps() sq.SelectBuilder {
	return psql.Select(appColumns...).From("applications").OrderBy("seq ASC")
}

func (s *PGStore) queryApps(ctx context.Context, q sq.SelectBuilder) ([]Application, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		var a Application
		var exp string
		if err := rows.Scan(&a.ID, &a.UserID, &a.FullName, &a.Position, &a.Email,
			&a.LicenseNumber, &exp, &a.Motivation, &a.ExperienceDetail,
			&a.UserAvatar, &a.WebhookURL, &a.Status, &a.ReviewedAt, &a.ReviewedBy); err != nil {
			return nil, err
		}
		a.Experience = Hours(exp)
		out = append(out, a)
	}
	return out, rows.Err()
}
