package analysis

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	appleads "github.com/carclabs/credit-funnel/internal/application/leads"
	domain "github.com/carclabs/credit-funnel/internal/domain/analysis"
	"github.com/carclabs/credit-funnel/internal/jsonrepair"
)

var repairOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_repair_outcomes_total",
		Help: "Model response parse outcomes (parsed, placeholder)",
	},
	[]string{"outcome"},
)

// Heartbeat progress advances between these bounds while the model call is
// outstanding, so it can never overtake the post-response milestones.
const (
	progressUpload   = 10
	progressDispatch = 30
	heartbeatCeiling = 55
	progressResponse = 60
	progressParse    = 80
	progressFinalize = 95
	heartbeatStep    = 2
	defaultHeartbeat = 5 * time.Second
)

// PlaceholderSummary is the summary text of the fixed fallback result used
// when the model reply cannot be repaired into valid JSON.
const PlaceholderSummary = "The analysis response was truncated and could not be fully recovered. " +
	"Please try uploading your reports again."

// Service runs one analysis job per call: a single attempt against the
// external model, progress events streamed over the returned channel in
// emission order, and a deterministic parse/repair pipeline on the reply.
type Service struct {
	Client domain.Client
	Leads  *appleads.Service // optional, best-effort funnel recording
	Clock  appleads.Clock

	// HeartbeatEvery overrides the keep-alive cadence; zero means default.
	HeartbeatEvery time.Duration
}

// Run starts the job and returns its event stream. The channel is closed
// after the final event; if ctx is cancelled the producer abandons the
// external call and closes without a final event.
func (s *Service) Run(ctx context.Context, job domain.Job) <-chan domain.Event {
	ch := make(chan domain.Event)
	go s.run(ctx, job, ch)
	return ch
}

func (s *Service) run(ctx context.Context, job domain.Job, ch chan<- domain.Event) {
	defer close(ch)

	emit := func(ev domain.Event) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	progress := func(p int, msg string) bool {
		return emit(domain.Event{Status: domain.StatusProcessing, Progress: p, Message: msg})
	}

	if !progress(progressUpload, "Uploading and processing report files...") {
		return
	}

	// best-effort lead recording; analysis never aborts on storage errors
	if job.LeadEmail != "" && s.Leads != nil {
		if _, err := s.Leads.Upsert(ctx, appleads.UpsertInput{
			Name:      job.LeadName,
			Email:     job.LeadEmail,
			IPAddress: job.ClientIP,
		}); err != nil {
			log.Printf("analysis lead upsert error for %s: %v", job.LeadEmail, err)
		}
	}

	if !progress(progressDispatch, "Analyzing credit reports with AI...") {
		return
	}

	raw, err := s.callModel(ctx, job, emit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		emit(domain.Event{Status: domain.StatusError, Message: upstreamMessage(err)})
		return
	}

	if !progress(progressResponse, "Processing AI response...") {
		return
	}
	if !progress(progressParse, "Parsing analysis results...") {
		return
	}

	result, perr := jsonrepair.Repair(raw)
	if perr != nil {
		// The model call itself succeeded, so the caller still gets a
		// renderable result.
		log.Printf("analysis parse/repair failed, serving placeholder: %v", perr)
		result = placeholderResult()
		repairOutcomes.WithLabelValues("placeholder").Inc()
	} else {
		repairOutcomes.WithLabelValues("parsed").Inc()
	}

	s.recordOutcome(ctx, job, result)

	if !progress(progressFinalize, "Finalizing report...") {
		return
	}
	emit(domain.Event{Status: domain.StatusCompleted, Progress: 100, Result: result})
}

// callModel runs the single external attempt while a heartbeat ticker keeps
// the stream visibly alive. The ticker is stopped on every exit path before
// the call result is surfaced.
func (s *Service) callModel(ctx context.Context, job domain.Job, emit func(domain.Event) bool) (string, error) {
	type outcome struct {
		raw string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		raw, err := s.Client.Analyze(ctx, job.Reports)
		done <- outcome{raw: raw, err: err}
	}()

	every := s.HeartbeatEvery
	if every <= 0 {
		every = defaultHeartbeat
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	p := progressDispatch
	for {
		select {
		case out := <-done:
			return out.raw, out.err
		case <-ticker.C:
			if p+heartbeatStep <= heartbeatCeiling {
				p += heartbeatStep
			}
			if !emit(domain.Event{Status: domain.StatusProcessing, Progress: p, Message: "Analysis in progress..."}) {
				return "", ctx.Err()
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// recordOutcome writes the funnel-progress flags for a known lead once a
// renderable result exists. Best-effort.
func (s *Service) recordOutcome(ctx context.Context, job domain.Job, result domain.Result) {
	if job.LeadEmail == "" || s.Leads == nil {
		return
	}
	if err := s.Leads.RecordAnalysis(ctx, job.LeadEmail, countViolations(result)); err != nil {
		log.Printf("analysis outcome record error for %s: %v", job.LeadEmail, err)
	}
}

// countViolations reads whichever violation list the model produced; the
// result shape is the model's, not ours.
func countViolations(result domain.Result) int {
	for _, key := range []string{"fcraViolations", "violations"} {
		if list, ok := result[key].([]any); ok {
			return len(list)
		}
	}
	return 0
}

func placeholderResult() domain.Result {
	return domain.Result{
		"summary":         PlaceholderSummary,
		"accounts":        []any{},
		"fcraViolations":  []any{},
		"recommendations": []any{},
	}
}

// upstreamMessage maps a provider failure to its generic caller-facing
// wording. Upstream bodies never reach the caller.
func upstreamMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, domain.ErrAccessDenied):
		return "Invalid API key or access denied."
	case errors.Is(err, domain.ErrBadInput):
		return "Error processing PDF files. Please ensure files are valid PDFs."
	default:
		return "Analysis failed. Please try again."
	}
}
