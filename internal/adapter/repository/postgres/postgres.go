package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

type urlDB struct {
	ID            int64        `db:"id"`
	ShortCode     string       `db:"short_code"`
	OriginalURL   string       `db:"original_url"`
	ExpiresAt     sql.NullTime `db:"expires_at"`
	Preview       []byte       `db:"preview"`
	UTMParameters []byte       `db:"utm_parameters"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// toEntity never fails on malformed JSON columns: a broken preview is dropped
// and broken UTM parameters are treated as none.
func (u *urlDB) toEntity() *entity.URL {
	url := &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}

	if u.ExpiresAt.Valid {
		expiresAt := u.ExpiresAt.Time
		url.ExpiresAt = &expiresAt
	}

	if len(u.Preview) > 0 {
		var preview entity.Preview
		if err := json.Unmarshal(u.Preview, &preview); err == nil {
			url.Preview = &preview
		}
	}

	if len(u.UTMParameters) > 0 {
		var params []entity.UTMParam
		if err := json.Unmarshal(u.UTMParameters, &params); err == nil {
			url.UTMParams = params
		}
	}

	return url
}

func previewArg(p *entity.Preview) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}

	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}

	return sql.NullString{String: string(b), Valid: true}, nil
}

func utmArg(params []entity.UTMParam) (string, error) {
	if params == nil {
		params = []entity.UTMParam{}
	}

	b, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func expiresAtArg(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts the URL in its own transaction. A short code collision rolls the
// transaction back and is reported as entity.ErrShortCodeExists.
func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(original_url, short_code, expires_at, preview, utm_parameters)
VALUES ($1, $2, $3, $4, $5) RETURNING *`

	preview, err := previewArg(url.Preview)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode preview: %w", op, err)
	}

	utm, err := utmArg(url.UTMParams)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode utm parameters: %w", op, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	var saved urlDB

	err = tx.GetContext(ctx, &saved, query,
		url.OriginalURL, url.ShortCode, expiresAtArg(url.ExpiresAt), preview, utm)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return saved.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT * FROM urls WHERE short_code = $1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}
