package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	domain "github.com/carclabs/credit-funnel/internal/domain/leads"
)

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Upsert insert/update Lead record keyed by normalized email.
// A concurrent duplicate insert is retried as an update, so the unique-email
// invariant holds without an explicit transaction.
func (r *LeadRepository) Upsert(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	const sel = `SELECT id FROM leads WHERE email=? LIMIT 1;`

	var id string
	err := r.db.QueryRowContext(ctx, sel, l.Email).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if ierr := r.insert(ctx, l); ierr != nil {
			if isDuplicate(ierr) {
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
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.Name, l.Email, nullString(l.IPAddress),
		l.EbookDownloaded, false, false, false, 0, false,
		nullString(l.Attribution.Source), nullString(l.Attribution.UTMCampaign),
		nullString(l.Attribution.UTMSource), nullString(l.Attribution.UTMMedium),
		created, created,
	)
	return err
}

// update refreshes name/flag/attribution on the existing row; attribution
// fields keep their stored value when the new one is empty.
func (r *LeadRepository) update(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	const q = `
UPDATE leads
SET name = ?,
    ebook_downloaded = ebook_downloaded OR ?,
    source = COALESCE(NULLIF(?, ''), source),
    utm_campaign = COALESCE(NULLIF(?, ''), utm_campaign),
    utm_source = COALESCE(NULLIF(?, ''), utm_source),
    utm_medium = COALESCE(NULLIF(?, ''), utm_medium),
    updated_at = NOW()
WHERE id = ?;
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

// refreshExisting re-reads the id after losing an insert race, then updates.
func (r *LeadRepository) refreshExisting(ctx context.Context, l *domain.Lead) (domain.UpsertStatus, error) {
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM leads WHERE email=? LIMIT 1;`, l.Email).Scan(&id); err != nil {
		return "", err
	}
	l.ID = domain.LeadID(id)
	return r.update(ctx, l)
}

// CountCreatedSince counts lead creations from one origin IP in the window.
func (r *LeadRepository) CountCreatedSince(ctx context.Context, ip string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM leads WHERE ip_address = ? AND created_at >= ?;`
	var n int
	if err := r.db.QueryRowContext(ctx, q, ip, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// RecordAnalysis marks a finished analysis and its violation count.
func (r *LeadRepository) RecordAnalysis(ctx context.Context, email string, violations int) error {
	const q = `
UPDATE leads
SET analysis_completed = TRUE,
    violations_found = ?,
    updated_at = NOW()
WHERE email = ?;
`
	_, err := r.db.ExecContext(ctx, q, violations, email)
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
