package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appanalysis "github.com/carclabs/credit-funnel/internal/application/analysis"
	appleads "github.com/carclabs/credit-funnel/internal/application/leads"
	domanalysis "github.com/carclabs/credit-funnel/internal/domain/analysis"
	domleads "github.com/carclabs/credit-funnel/internal/domain/leads"
	"github.com/carclabs/credit-funnel/internal/infra/render"
	"github.com/carclabs/credit-funnel/internal/middleware"
)

// Limits bundles the abuse-control ceilings of the analysis endpoint.
type Limits struct {
	MaxRequestBytes int64
	MaxFileBytes    int64
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// EbookFetcher serves the gated eBook asset.
type EbookFetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, string, error)
}

type Router struct {
	leadsSvc    *appleads.Service
	analysisSvc *appanalysis.Service
	origins     *middleware.OriginPolicy
	ebook       EbookFetcher
	limits      Limits
}

func NewRouter(leadsSvc *appleads.Service, analysisSvc *appanalysis.Service, origins *middleware.OriginPolicy, ebook EbookFetcher, limits Limits) http.Handler {
	r := &Router{leadsSvc: leadsSvc, analysisSvc: analysisSvc, origins: origins, ebook: ebook, limits: limits}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.Metrics)
	// preflight is permissive for every endpoint; the analysis handler does
	// its own allow-list on the real request
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/leads", r.wrap(r.handleCreateLead))
		rt.Post("/analyze", r.handleAnalyze)
		rt.Post("/report", r.wrap(r.handleGenerateReport))
		rt.Get("/ebook", r.wrap(r.handleEbook))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var verrs appleads.ValidationErrors
			if errors.As(err, &verrs) {
				writeError(w, http.StatusBadRequest, verrs.Error())
				return
			}
			// storage/internal failures stay redacted for callers
			log.Printf("handler error: method=%s path=%s: %v", req.Method, req.URL.Path, err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/leads
// Body: {"name", "email", "ebook_downloaded"?, "source"?, "utm_campaign"?, "utm_source"?, "utm_medium"?}
func (r *Router) handleCreateLead(w http.ResponseWriter, req *http.Request) error {
	var body appleads.UpsertInput
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil
	}
	body.IPAddress = middleware.ClientIP(req)

	res, err := r.leadsSvc.Upsert(req.Context(), body)
	if err != nil {
		return err
	}

	middleware.RecordLeadUpsert(string(res.Status))
	status := http.StatusOK
	message := "Lead updated"
	if res.Status == domleads.StatusCreated {
		status = http.StatusCreated
		message = "Lead created"
	}
	return writeJSON(w, status, map[string]string{"id": res.ID, "message": message})
}

// POST /v1/analyze
// Multipart form with optional file fields experian/equifax/transunion and
// optional leadName/leadEmail text fields. Responds with an event stream.
// Guards run in order and each short-circuits with its own status.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	if req.ContentLength > r.limits.MaxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		return
	}

	if req.Header.Get("Origin") == "" && req.Header.Get("Referer") == "" {
		writeError(w, http.StatusForbidden, "Direct API access is not allowed")
		return
	}
	if !r.origins.Allowed(middleware.ResolveOrigin(req)) {
		writeError(w, http.StatusForbidden, "Origin not allowed")
		return
	}

	ip := middleware.ClientIP(req)
	count, err := r.leadsSvc.CountRecentByIP(req.Context(), ip, r.limits.RateLimitWindow)
	if err != nil {
		// storage trouble must not take the analysis path down
		log.Printf("rate limit lookup error for %s: %v", ip, err)
	} else if count >= r.limits.RateLimitMax {
		retry := int(r.limits.RateLimitWindow / time.Second)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error":               "Too many requests. Please try again later.",
			"retry_after_seconds": retry,
		})
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.limits.MaxRequestBytes)
	if err := req.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer req.MultipartForm.RemoveAll()

	job := domanalysis.Job{
		LeadName:  req.FormValue("leadName"),
		LeadEmail: req.FormValue("leadEmail"),
		ClientIP:  ip,
	}
	for _, bureau := range []domanalysis.Bureau{domanalysis.BureauExperian, domanalysis.BureauEquifax, domanalysis.BureauTransUnion} {
		files := req.MultipartForm.File[string(bureau)]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		if fh.Size > r.limits.MaxFileBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file %q exceeds the per-file size limit", bureau))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read file %q", bureau))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read file %q", bureau))
			return
		}
		job.Reports = append(job.Reports, domanalysis.Report{Bureau: bureau, Data: data})
	}
	if len(job.Reports) == 0 {
		writeError(w, http.StatusBadRequest, "No credit report files provided")
		return
	}

	sw, err := NewStreamWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	start := time.Now()
	final := domanalysis.StatusError
	for ev := range r.analysisSvc.Run(req.Context(), job) {
		if ev.Status != domanalysis.StatusProcessing {
			final = ev.Status
		}
		if err := sw.Send(ev); err != nil {
			log.Printf("analysis stream write error: %v", err)
			middleware.RecordAnalysis("disconnected", time.Since(start))
			return
		}
	}
	if req.Context().Err() != nil {
		middleware.RecordAnalysis("cancelled", time.Since(start))
		return
	}
	sw.Done()
	middleware.RecordAnalysis(string(final), time.Since(start))
}

// POST /v1/report
// Body: {"results": <analysis result>, "leadName": "..."}
func (r *Router) handleGenerateReport(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Results  map[string]any `json:"results"`
		LeadName string         `json:"leadName"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil
	}
	if body.Results == nil {
		writeError(w, http.StatusBadRequest, "No results provided")
		return nil
	}

	now := time.Now()
	doc, err := render.Document(body.Results, body.LeadName, now)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(now)))
	_, err = w.Write(doc)
	return err
}

// GET /v1/ebook
func (r *Router) handleEbook(w http.ResponseWriter, req *http.Request) error {
	if r.ebook == nil {
		writeError(w, http.StatusNotFound, "ebook not available")
		return nil
	}
	obj, contentType, err := r.ebook.Fetch(req.Context())
	if err != nil {
		return err
	}
	defer obj.Close()

	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "credit-secrets-ebook.pdf"))
	_, err = io.Copy(w, obj)
	return err
}
