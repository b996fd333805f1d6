package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

// NumberInventory is the numbers persistence the catalog reads and
// administers.
type NumberInventory interface {
	GetByID(ctx context.Context, id int64) (*model.Number, error)
	ListAvailableByCountry(ctx context.Context, countryID int64, includePremium bool, page, pageSize int) ([]model.Number, error)
	CountAvailableByCountry(ctx context.Context, countryID int64, includePremium bool) (int, error)
	SearchPremium(ctx context.Context, countryID int64, pattern string) ([]model.Number, error)
	Add(ctx context.Context, countryID int64, value, platform string, isPremium bool, premiumPattern string, addedBy int64) (int64, error)
	Deactivate(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

// CountryInventory is the countries persistence behind the catalog.
type CountryInventory interface {
	Get(ctx context.Context, id int64) (*model.Country, error)
	ListActiveWithCounts(ctx context.Context, includePremium bool) ([]model.Country, error)
	ListAll(ctx context.Context) ([]model.Country, error)
	Add(ctx context.Context, name, flag string) (int64, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// NumbersPageSize is how many numbers one listing page shows.
const NumbersPageSize = 5

const maxPatternLen = 20

// ErrBadPattern rejects malformed premium search patterns.
var ErrBadPattern = errors.New("invalid search pattern")

// NumberPage is one page of a country's available numbers.
type NumberPage struct {
	Numbers    []model.Number
	Page       int
	TotalPages int
	Total      int
}

// Catalog serves country and number listings with PRO-tier visibility and
// handles inventory administration.
type Catalog struct {
	numbers   NumberInventory
	countries CountryInventory
	audit     Auditor
}

// NewCatalog wires the catalog service. audit may be nil.
func NewCatalog(numbers NumberInventory, countries CountryInventory, audit Auditor) *Catalog {
	return &Catalog{numbers: numbers, countries: countries, audit: audit}
}

// Countries lists active countries with their available-number counts for
// the caller's visibility tier. Countries with nothing to offer are
// omitted.
func (c *Catalog) Countries(ctx context.Context, isPro bool) ([]model.Country, error) {
	countries, err := c.countries.ListActiveWithCounts(ctx, isPro)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return countries, nil
}

// Country fetches one country for rendering headers.
func (c *Catalog) Country(ctx context.Context, id int64) (*model.Country, error) {
	return c.countries.Get(ctx, id)
}

// Numbers returns one page of a country's available numbers. PRO callers
// see premium numbers first; others only standard ones. Page is clamped
// into the valid range.
func (c *Catalog) Numbers(ctx context.Context, countryID int64, isPro bool, page int) (*NumberPage, error) {
	total, err := c.numbers.CountAvailableByCountry(ctx, countryID, isPro)
	if err != nil {
		return nil, fmt.Errorf("count numbers: %w", err)
	}
	totalPages := (total + NumbersPageSize - 1) / NumbersPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	numbers, err := c.numbers.ListAvailableByCountry(ctx, countryID, isPro, page, NumbersPageSize)
	if err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	return &NumberPage{Numbers: numbers, Page: page, TotalPages: totalPages, Total: total}, nil
}

// SearchPremium finds available premium numbers matching a wildcard
// pattern. PRO only.
func (c *Catalog) SearchPremium(ctx context.Context, countryID int64, pattern string, isPro bool) ([]model.Number, error) {
	if !isPro {
		return nil, ErrNotPro
	}
	pattern = strings.TrimSpace(pattern)
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	numbers, err := c.numbers.SearchPremium(ctx, countryID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search premium: %w", err)
	}
	logger.SVCCatalog.Debug("premium search",
		slog.String("event", "catalog.search"),
		slog.Int64("country_id", countryID),
		slog.Int("results", len(numbers)),
	)
	return numbers, nil
}

// validatePattern accepts digits, '+' and '*' wildcards, up to a sane
// length, and requires at least one concrete character.
func validatePattern(pattern string) error {
	if pattern == "" || len(pattern) > maxPatternLen {
		return ErrBadPattern
	}
	concrete := false
	for _, r := range pattern {
		switch {
		case r >= '0' && r <= '9', r == '+':
			concrete = true
		case r == '*':
		default:
			return ErrBadPattern
		}
	}
	if !concrete {
		return ErrBadPattern
	}
	return nil
}

// AddCountry registers a new country for administrators.
func (c *Catalog) AddCountry(ctx context.Context, adminID int64, name, flag string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("country name is required")
	}
	id, err := c.countries.Add(ctx, name, strings.TrimSpace(flag))
	if err != nil {
		return 0, fmt.Errorf("add country: %w", err)
	}
	if c.audit != nil {
		c.audit.Record(ctx, adminID, "COUNTRY_ADDED", fmt.Sprintf("country_id=%d name=%s", id, name))
	}
	return id, nil
}

// SetCountryActive toggles a country's visibility.
func (c *Catalog) SetCountryActive(ctx context.Context, adminID, countryID int64, active bool) error {
	if err := c.countries.SetActive(ctx, countryID, active); err != nil {
		return err
	}
	if c.audit != nil {
		c.audit.Record(ctx, adminID, "COUNTRY_TOGGLED", fmt.Sprintf("country_id=%d active=%t", countryID, active))
	}
	return nil
}

// AllCountries lists every country for administration menus.
func (c *Catalog) AllCountries(ctx context.Context) ([]model.Country, error) {
	return c.countries.ListAll(ctx)
}

// AddNumber registers a new number under a country. The country must
// exist; premium numbers may carry the pattern that makes them premium.
func (c *Catalog) AddNumber(ctx context.Context, adminID, countryID int64, value, platform string, isPremium bool, premiumPattern string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("number value is required")
	}
	if _, err := c.countries.Get(ctx, countryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("country %d does not exist", countryID)
		}
		return 0, err
	}
	id, err := c.numbers.Add(ctx, countryID, value, strings.TrimSpace(platform), isPremium, premiumPattern, adminID)
	if err != nil {
		return 0, fmt.Errorf("add number: %w", err)
	}
	if c.audit != nil {
		c.audit.Record(ctx, adminID, "NUMBER_ADDED",
			fmt.Sprintf("number_id=%d country_id=%d premium=%t", id, countryID, isPremium))
	}
	logger.SVCCatalog.Info("number added",
		slog.String("event", "catalog.add_number"),
		slog.Int64("number_id", id),
		slog.Int64("country_id", countryID),
		slog.Bool("premium", isPremium),
	)
	return id, nil
}

// DeactivateNumber soft-removes a number from every listing.
func (c *Catalog) DeactivateNumber(ctx context.Context, adminID, numberID int64) error {
	if err := c.numbers.Deactivate(ctx, numberID); err != nil {
		return err
	}
	if c.audit != nil {
		c.audit.Record(ctx, adminID, "NUMBER_DEACTIVATED", fmt.Sprintf("number_id=%d", numberID))
	}
	return nil
}

// ReactivateNumber returns a spent or disabled number to the pool.
func (c *Catalog) ReactivateNumber(ctx context.Context, adminID, numberID int64) error {
	if err := c.numbers.Reactivate(ctx, numberID); err != nil {
		return err
	}
	if c.audit != nil {
		c.audit.Record(ctx, adminID, "NUMBER_REACTIVATED", fmt.Sprintf("number_id=%d", numberID))
	}
	return nil
}
