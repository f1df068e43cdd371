package leads

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/carclabs/credit-funnel/internal/domain/leads"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EbookSender delivers the gated eBook after a successful signup.
// Delivery is best-effort and never affects the upsert outcome.
type EbookSender interface {
	SendEbook(name, email string) error
}

// Service implements use-cases untuk Lead
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Repo  domain.Repository
	Mail  EbookSender // optional
	Clock Clock
}

// Command untuk upsert lead
type UpsertInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	EbookDownloaded bool   `json:"ebook_downloaded"`
	Source          string `json:"source"`
	UTMCampaign     string `json:"utm_campaign"`
	UTMSource       string `json:"utm_source"`
	UTMMedium       string `json:"utm_medium"`
	IPAddress       string `json:"-"`
}

type UpsertResult struct {
	ID     string              `json:"id"`
	Status domain.UpsertStatus `json:"status"`
}

// Upsert validates the input and creates or updates the lead keyed by its
// normalized email. A repeated signup never fails for already existing; it
// refreshes name, ebook flag and attribution on the existing row.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (UpsertResult, error) {
	if errs := ValidateUpsertInput(input); len(errs) > 0 {
		return UpsertResult{}, errs
	}

	lead := &domain.Lead{
		ID:              domain.LeadID(uuid.New().String()),
		Name:            strings.TrimSpace(input.Name),
		Email:           NormalizeEmail(input.Email),
		IPAddress:       input.IPAddress,
		EbookDownloaded: input.EbookDownloaded,
		Attribution: domain.Attribution{
			Source:      input.Source,
			UTMCampaign: input.UTMCampaign,
			UTMSource:   input.UTMSource,
			UTMMedium:   input.UTMMedium,
		},
		CreatedAt: s.Clock.Now(),
	}

	status, err := s.Repo.Upsert(ctx, lead)
	if err != nil {
		return UpsertResult{}, err
	}

	if status == domain.StatusCreated && input.EbookDownloaded && s.Mail != nil {
		// kirim di background, signup response jangan nunggu SMTP
		go func(name, email string) {
			if err := s.Mail.SendEbook(name, email); err != nil {
				log.Printf("ebook mail error for %s: %v", email, err)
			}
		}(lead.Name, lead.Email)
	}

	return UpsertResult{ID: string(lead.ID), Status: status}, nil
}

// CountRecentByIP reports lead creations from ip inside the trailing window.
func (s *Service) CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	return s.Repo.CountCreatedSince(ctx, ip, s.Clock.Now().Add(-window))
}

// RecordAnalysis is called after an analysis stream completes for a known
// lead; failures are the caller's to log, never to surface.
func (s *Service) RecordAnalysis(ctx context.Context, email string, violations int) error {
	return s.Repo.RecordAnalysis(ctx, NormalizeEmail(email), violations)
}
