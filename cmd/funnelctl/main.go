// funnelctl drives the lead funnel from the command line: sign up, upload
// reports for analysis, download the rendered document, and inspect the
// locally cached lead record.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/carclabs/credit-funnel/internal/leadstore"
)

const defaultAPI = "http://localhost:8080"

func main() {
	_ = godotenv.Load()
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	api := os.Getenv("FUNNEL_API")
	if api == "" {
		api = defaultAPI
	}

	store := leadstore.New(storePath())
	store.Load()

	var err error
	switch os.Args[1] {
	case "signup":
		err = cmdSignup(api, store, os.Args[2:])
	case "status":
		err = cmdStatus(store)
	case "analyze":
		err = cmdAnalyze(api, store, os.Args[2:])
	case "report":
		err = cmdReport(api, store, os.Args[2:])
	case "clear":
		err = store.Clear()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("funnelctl: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: funnelctl <command> [flags]

commands:
  signup   -name NAME -email EMAIL [-query "utm_source=..."] register a lead
  status   show the cached lead record
  analyze  [-experian F] [-equifax F] [-transunion F] [-out FILE] stream an analysis
  report   [-in results.json] [-out report.html] render the last analysis
  clear    forget the cached lead`)
}

func storePath() string {
	if v := os.Getenv("FUNNEL_STORE"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".funnel-lead.json"
	}
	return filepath.Join(home, ".funnel-lead.json")
}

func cmdSignup(api string, store *leadstore.Store, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "lead name")
	email := fs.String("email", "", "lead email")
	query := fs.String("query", "", "attribution query string, e.g. utm_source=newsletter")
	ebook := fs.Bool("ebook", true, "request the free ebook")
	fs.Parse(args)

	if *name == "" || *email == "" {
		return fmt.Errorf("signup requires -name and -email")
	}

	attribution := leadstore.ParseAttribution(*query)

	body := map[string]any{
		"name":             *name,
		"email":            *email,
		"ebook_downloaded": *ebook,
	}
	if attribution.Source != nil {
		body["source"] = *attribution.Source
	}
	if attribution.UTMCampaign != nil {
		body["utm_campaign"] = *attribution.UTMCampaign
	}
	if attribution.UTMSource != nil {
		body["utm_source"] = *attribution.UTMSource
	}
	if attribution.UTMMedium != nil {
		body["utm_medium"] = *attribution.UTMMedium
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(api+"/v1/leads", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("calling lead service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("lead service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding lead response: %w", err)
	}

	patch := attribution
	patch.ID = &result.ID
	patch.Name = name
	patch.Email = email
	patch.EbookDownloaded = ebook
	if _, err := store.Merge(patch); err != nil {
		return err
	}

	fmt.Printf("%s (id %s)\n", result.Message, result.ID)
	return nil
}

func cmdStatus(store *leadstore.Store) error {
	rec, _ := store.Get()
	if rec == nil {
		fmt.Println("no lead cached; run funnelctl signup first")
		return nil
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdAnalyze(api string, store *leadstore.Store, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	experian := fs.String("experian", "", "Experian report PDF")
	equifax := fs.String("equifax", "", "Equifax report PDF")
	transunion := fs.String("transunion", "", "TransUnion report PDF")
	out := fs.String("out", "results.json", "file for the final result")
	fs.Parse(args)

	files := map[string]string{}
	for field, path := range map[string]string{
		"experian":   *experian,
		"equifax":    *equifax,
		"transunion": *transunion,
	} {
		if path != "" {
			files[field] = path
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("analyze requires at least one of -experian, -equifax, -transunion")
	}

	rec, _ := store.Get()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	if rec != nil {
		mw.WriteField("leadName", rec.Name)
		mw.WriteField("leadEmail", rec.Email)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, api+"/v1/analyze", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", "http://localhost:3000")

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	result, err := consumeStream(resp.Body)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("stream ended without a result")
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("result written to %s\n", *out)

	violations := countViolations(result)
	done := true
	if _, err := store.Merge(leadstore.Patch{
		AnalysisCompleted: &done,
		ViolationsFound:   &violations,
	}); err != nil {
		log.Printf("warning: could not update lead record: %v", err)
	}
	return nil
}

type streamEvent struct {
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
}

// consumeStream reads data: frames until the [DONE] sentinel, printing
// progress lines and returning the final result payload.
func consumeStream(r io.Reader) (map[string]any, error) {
	var result map[string]any

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			log.Printf("warning: skipping malformed frame: %v", err)
			continue
		}

		switch ev.Status {
		case "error":
			return nil, fmt.Errorf("analysis failed: %s", ev.Message)
		case "completed":
			fmt.Printf("[100%%] completed\n")
			result = ev.Result
		default:
			fmt.Printf("[%3d%%] %s\n", ev.Progress, ev.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return result, nil
}

func countViolations(result map[string]any) int {
	for _, key := range []string{"violations", "fcraViolations"} {
		if list, ok := result[key].([]any); ok {
			return len(list)
		}
	}
	return 0
}

func cmdReport(api string, store *leadstore.Store, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "results.json", "analysis result file")
	out := fs.String("out", "", "output document (default: server-provided name)")
	fs.Parse(args)

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var results map[string]any
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing %s: %w", *in, err)
	}

	leadName := ""
	if rec, _ := store.Get(); rec != nil {
		leadName = rec.Name
	}

	payload, err := json.Marshal(map[string]any{
		"results":  results,
		"leadName": leadName,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(api+"/v1/report", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("calling report service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("report service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	name := *out
	if name == "" {
		name = attachmentName(resp.Header.Get("Content-Disposition"))
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, doc, 0o644); err != nil {
		return err
	}
	fmt.Printf("report written to %s\n", name)
	return nil
}

func attachmentName(disposition string) string {
	const marker = `filename="`
	if i := strings.Index(disposition, marker); i >= 0 {
		rest := disposition[i+len(marker):]
		if j := strings.Index(rest, `"`); j > 0 {
			return rest[:j]
		}
	}
	return "credit-report-analysis.html"
}
