package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type clickDB struct {
	ID        int64          `db:"id"`
	URLID     int64          `db:"url_id"`
	IPAddress string         `db:"ip_address"`
	UserAgent string         `db:"user_agent"`
	Referrer  sql.NullString `db:"referrer"`
	ClickedAt time.Time      `db:"clicked_at"`
}

func (c *clickDB) toEntity() entity.Click {
	click := entity.Click{
		ID:        c.ID,
		URLID:     c.URLID,
		IPAddress: c.IPAddress,
		UserAgent: c.UserAgent,
		ClickedAt: c.ClickedAt,
	}

	if c.Referrer.Valid {
		referrer := c.Referrer.String
		click.Referrer = &referrer
	}

	return click
}

type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

func (r *ClickRepository) Save(ctx context.Context, click entity.Click) error {
	const op = "adapter.repository.postgres.ClickRepository.Save"
	const query = `INSERT INTO clicks(url_id, ip_address, user_agent, referrer, clicked_at)
VALUES ($1, $2, $3, $4, $5)`

	var referrer sql.NullString
	if click.Referrer != nil {
		referrer = sql.NullString{String: *click.Referrer, Valid: true}
	}

	clickedAt := click.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		click.URLID, click.IPAddress, click.UserAgent, referrer, clickedAt)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into clicks table: %w", op, err)
	}

	return nil
}

func (r *ClickRepository) CountByURLID(ctx context.Context, urlID int64) (int64, error) {
	const op = "adapter.repository.postgres.ClickRepository.CountByURLID"
	const query = `SELECT COUNT(*) FROM clicks WHERE url_id = $1`

	var count int64

	if err := r.db.GetContext(ctx, &count, query, urlID); err != nil {
		return 0, fmt.Errorf("%s: failed to count rows of clicks table: %w", op, err)
	}

	return count, nil
}

// ListRecentByURLID returns up to limit clicks of the URL, newest first. Clicks
// sharing a timestamp are ordered by descending id.
func (r *ClickRepository) ListRecentByURLID(ctx context.Context, urlID int64, limit int) ([]entity.Click, error) {
	const op = "adapter.repository.postgres.ClickRepository.ListRecentByURLID"
	const query = `SELECT * FROM clicks WHERE url_id = $1 ORDER BY clicked_at DESC, id DESC LIMIT $2`

	var rows []clickDB

	if err := r.db.SelectContext(ctx, &rows, query, urlID, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to select rows from clicks table: %w", op, err)
	}

	clicks := make([]entity.Click, 0, len(rows))
	for i := range rows {
		clicks = append(clicks, rows[i].toEntity())
	}

	return clicks, nil
}
