package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	domain "github.com/carclabs/credit-funnel/internal/domain/leads"
)

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Upsert mirrors the MySQL repository on Postgres: existing email wins and is
// refreshed; a lost insert race degrades to an update.
func (r *LeadRepository) Upsert(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	const sel = `SELECT id FROM leads WHERE email=$1 LIMIT 1`

	var id string
	err := r.db.QueryRowContext(ctx, sel, l.Email).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if ierr := r.insert(ctx, l); ierr != nil {
			var pe *pq.Error
			if errors.As(ierr, &pe) && pe.Code == "23505" {
				return r.refreshExisting(ctx, l)
			}
			return "", ierr
		}
		return domain.StatusCreated, nil
	case err != nil:
		return "", err
	}

	l.ID = domain.LeadID(id)
	return r.update(ctx, l)
}

func (r *LeadRepository) insert(ctx context.Context, l *domain.Lead) error {
	const q = `
INSERT INTO leads
(id, name, email, ip_address, ebook_downloaded, portal_accessed,
 reports_downloaded, analysis_completed, violations_found, call_booked,
 source, utm_campaign, utm_source, utm_medium, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,false,false,false,0,false,$6,$7,$8,$9,$10,$10)
`
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.Name, l.Email, nullString(l.IPAddress), l.EbookDownloaded,
		nullString(l.Attribution.Source), nullString(l.Attribution.UTMCampaign),
		nullString(l.Attribution.UTMSource), nullString(l.Attribution.UTMMedium),
		created,
	)
	return err
}

func (r *LeadRepository) update(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	const q = `
UPDATE leads
SET name = $1,
    ebook_downloaded = ebook_downloaded OR $2,
    source = COALESCE(NULLIF($3, ''), source),
    utm_campaign = COALESCE(NULLIF($4, ''), utm_campaign),
    utm_source = COALESCE(NULLIF($5, ''), utm_source),
    utm_medium = COALESCE(NULLIF($6, ''), utm_medium),
    updated_at = NOW()
WHERE id = $7
`
	_, err := r.db.ExecContext(ctx, q,
		l.Name, l.EbookDownloaded,
		l.Attribution.Source, l.Attribution.UTMCampaign,
		l.Attribution.UTMSource, l.Attribution.UTMMedium,
		l.ID,
	)
	if err != nil {
		return "", err
	}
	return domain.StatusUpdated, nil
}

func (r *LeadRepository) refreshExisting(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM leads WHERE email=$1 LIMIT 1`, l.Email).Scan(&id); err != nil {
		return "", err
	}
	l.ID = domain.LeadID(id)
	return r.update(ctx, l)
}

func (r *LeadRepository) CountCreatedSince(ctx context.Context, ip string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM leads WHERE ip_address = $1 AND created_at >= $2`
	var n int
	if err := r.db.QueryRowContext(ctx, q, ip, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *LeadRepository) RecordAnalysis(ctx context.Context, email string, violations int) error {
	const q = `
UPDATE leads
SET analysis_completed = TRUE,
    violations_found = $1,
    updated_at = NOW()
WHERE email = $2
`
	_, err := r.db.ExecContext(ctx, q, violations, email)
	return err
}

// nullString maps "" to NULL so optional columns stay NULL instead of empty
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
