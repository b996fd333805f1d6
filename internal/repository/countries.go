package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// CountryRepo provides data access to the countries table.
type CountryRepo struct {
	db *sqlx.DB
}

// NewCountryRepo returns a CountryRepo bound to the provided database.
func NewCountryRepo(db *sqlx.DB) *CountryRepo { return &CountryRepo{db: db} }

// Get fetches one country by id.
func (r *CountryRepo) Get(ctx context.Context, id int64) (*model.Country, error) {
	var c model.Country
	err := r.db.GetContext(ctx, &c,
		`SELECT id, name, flag, is_active, 0 AS number_count FROM countries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveWithCounts returns active countries that currently offer at
// least one number for the given visibility tier.
func (r *CountryRepo) ListActiveWithCounts(ctx context.Context, includePremium bool) ([]model.Country, error) {
	q := `SELECT c.id, c.name, c.flag, c.is_active, COUNT(n.id) AS number_count
		FROM countries c
		JOIN numbers n ON n.country_id = c.id AND n.is_active AND n.is_available`
	if !includePremium {
		q += ` AND NOT n.is_premium`
	}
	q += ` WHERE c.is_active
		GROUP BY c.id, c.name, c.flag, c.is_active
		ORDER BY c.name`

	var countries []model.Country
	if err := r.db.SelectContext(ctx, &countries, q); err != nil {
		return nil, err
	}
	return countries, nil
}

// ListAll returns every country, active or not, for administration.
func (r *CountryRepo) ListAll(ctx context.Context) ([]model.Country, error) {
	var countries []model.Country
	err := r.db.SelectContext(ctx, &countries,
		`SELECT id, name, flag, is_active, 0 AS number_count FROM countries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return countries, nil
}

// Add inserts a new country and returns its id.
func (r *CountryRepo) Add(ctx context.Context, name, flag string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		`INSERT INTO countries (name, flag) VALUES ($1, $2) RETURNING id`, name, flag)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetActive toggles country visibility.
func (r *CountryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE countries SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
