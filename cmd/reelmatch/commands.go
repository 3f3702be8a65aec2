package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/api"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/config"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/docextract"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- match ---

var matchCmd = &cobra.Command{
	Use:   "match <job-id>",
	Short: "Rank job seekers against a job posting",
	Long: `Rank all job seekers against a job posting and store the matches.

Examples:
  reelmatch match 12
  reelmatch match 12 --threshold 0.45
  reelmatch match 12 --async`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseID(args[0])
		if err != nil {
			return err
		}
		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			th, _ := cmd.Flags().GetFloat64("threshold")
			threshold = &th
		}
		async, _ := cmd.Flags().GetBool("async")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runMatch(cmd.Context(), client, os.Stdout, jobID, threshold, async)
	},
}

func init() {
	matchCmd.Flags().Float64("threshold", 0, "minimum similarity in [0, 1] (default from config)")
	matchCmd.Flags().Bool("async", false, "queue the match for the background worker")
}

func runMatch(ctx context.Context, client *apiClient, out io.Writer, jobID int64, threshold *float64, async bool) error {
	body := map[string]any{}
	if threshold != nil {
		body["threshold"] = *threshold
	}

	if async {
		resp, err := client.post(ctx, fmt.Sprintf("/jobs/%d/match/async", jobID), body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued match job %s", result["id"])
		return nil
	}

	printStep("Matching job posting %d", jobID)
	resp, err := client.post(ctx, fmt.Sprintf("/jobs/%d/match", jobID), body)
	if err != nil {
		return err
	}
	var rep api.ReportView
	if err := decodeJSON(resp, &rep); err != nil {
		return err
	}

	if len(rep.Matches) == 0 {
		fmt.Fprintf(out, "No candidates at or above threshold %.2f.\n", rep.Threshold)
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tCANDIDATE\tNAME\tSCORE\tSKILLS\tMISSING")
		for i, m := range rep.Matches {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%.3f\t%s\t%s\n",
				i+1, m.CandidateID, m.Name, m.Score,
				percent(m.Skills.Percentage), strings.Join(m.Skills.MissingRequired, ","))
		}
		tw.Flush()
	}

	if !rep.Persisted {
		printWarning("results were not saved: %s", rep.StoreError)
	}
	printSuccess("%d matched, %d skipped (threshold %.2f)", len(rep.Matches), len(rep.Skipped), rep.Threshold)
	return nil
}

// --- matches ---

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List and decide stored matches",
}

var matchesListCmd = &cobra.Command{
	Use:   "list <job-id>",
	Short: "List stored matches for a posting, best first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseID(args[0])
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listMatches(cmd.Context(), client, os.Stdout, jobID, status, limit, asJSON)
	},
}

var matchesAcceptCmd = &cobra.Command{
	Use:   "accept <match-id>",
	Short: "Accept a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideMatchCmd(cmd.Context(), args[0], "accepted")
	},
}

var matchesRejectCmd = &cobra.Command{
	Use:   "reject <match-id>",
	Short: "Reject a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideMatchCmd(cmd.Context(), args[0], "rejected")
	},
}

func init() {
	matchesListCmd.Flags().String("status", "", "filter by status: pending, accepted or rejected")
	matchesListCmd.Flags().Int("limit", 20, "maximum number of results")
	matchesListCmd.Flags().Bool("json", false, "print raw JSON")
	matchesCmd.AddCommand(matchesListCmd)
	matchesCmd.AddCommand(matchesAcceptCmd)
	matchesCmd.AddCommand(matchesRejectCmd)
}

func listMatches(ctx context.Context, client *apiClient, out io.Writer, jobID int64, status string, limit int, asJSON bool) error {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/jobs/%d/matches", jobID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var matches []api.MatchView
	if err := decodeJSON(resp, &matches); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tCANDIDATE\tSCORE\tSKILLS\tSTATUS\tUPDATED")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%s\t%s\t%s\n",
			m.ID, m.CandidateID, m.Score, percent(m.Skills.Percentage), m.Status,
			m.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func decideMatchCmd(ctx context.Context, matchID, status string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	return decideMatch(ctx, client, matchID, status)
}

func decideMatch(ctx context.Context, client *apiClient, matchID, status string) error {
	resp, err := client.patch(ctx, "/matches/"+url.PathEscape(matchID), map[string]string{"status": status})
	if err != nil {
		return err
	}
	var m api.MatchView
	if err := decodeJSON(resp, &m); err != nil {
		return err
	}
	printSuccess("Match %s is now %s", m.ID, m.Status)
	return nil
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job postings",
}

var jobsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create a job posting from a description file",
	Long: `Create a job posting. The description is read from a .txt, .md, .html,
.pdf or .docx file, or given inline.

Examples:
  reelmatch jobs import --title "Data Engineer" --file ./jd.pdf --skills kafka,sql
  reelmatch jobs import --title "Go Developer" --description "Build APIs in Go" --expires-in 720h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := jobRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return importJob(cmd.Context(), client, req)
	},
}

func init() {
	registerJobFlags(jobsImportCmd)
}

func registerJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "job title (required)")
	f.String("file", "", "job description file")
	f.String("description", "", "job description text")
	f.String("requirements", "", "requirements text")
	f.String("responsibilities", "", "responsibilities text")
	f.String("skills", "", "comma-separated required skills")
	f.String("preferred", "", "comma-separated preferred skills")
	f.String("experience", "", "experience level")
	f.Int64("employer", 0, "employer id")
	f.Float64("threshold", 0, "posting threshold in [0, 1] (default 0.7)")
	f.Duration("expires-in", 0, "close the posting after this long")
}

func jobRequestFromFlags(cmd *cobra.Command) (api.JobPostingRequest, error) {
	f := cmd.Flags()
	title, _ := f.GetString("title")
	file, _ := f.GetString("file")
	desc, _ := f.GetString("description")
	reqs, _ := f.GetString("requirements")
	resp, _ := f.GetString("responsibilities")
	skills, _ := f.GetString("skills")
	preferred, _ := f.GetString("preferred")
	experience, _ := f.GetString("experience")
	employer, _ := f.GetInt64("employer")
	var threshold *float64
	if f.Changed("threshold") {
		th, _ := f.GetFloat64("threshold")
		threshold = &th
	}
	expiresIn, _ := f.GetDuration("expires-in")

	if file != "" {
		if desc != "" {
			return api.JobPostingRequest{}, errors.New("use either --file or --description, not both")
		}
		text, err := docextract.FromFile(file)
		if err != nil {
			return api.JobPostingRequest{}, err
		}
		desc = text
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
	}
	if title == "" {
		return api.JobPostingRequest{}, errors.New("--title is required")
	}
	if strings.TrimSpace(desc) == "" {
		return api.JobPostingRequest{}, errors.New("one of --file or --description is required")
	}

	req := api.JobPostingRequest{
		EmployerID:       employer,
		Title:            title,
		Description:      desc,
		Requirements:     reqs,
		Responsibilities: resp,
		RequiredSkills:   splitList(skills),
		PreferredSkills:  splitList(preferred),
		ExperienceLevel:  experience,
		Threshold:        threshold,
	}
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn).UTC()
		req.ExpiresAt = &t
	}
	return req, nil
}

func importJob(ctx context.Context, client *apiClient, req api.JobPostingRequest) error {
	resp, err := client.post(ctx, "/jobs", req)
	if err != nil {
		return err
	}
	var job api.JobPostingView
	if err := decodeJSON(resp, &job); err != nil {
		return err
	}
	printSuccess("Created job posting %d (%s)", job.ID, job.Title)
	return nil
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listJobs(cmd.Context(), client, os.Stdout, status)
	},
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by status: active, filled or expired")
}

func listJobs(ctx context.Context, client *apiClient, out io.Writer, status string) error {
	path := "/jobs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var jobs []api.JobPostingView
	if err := decodeJSON(resp, &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No job postings found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tTHRESHOLD\tEXPIRES")
	for _, j := range jobs {
		expires := "-"
		if j.ExpiresAt != nil {
			expires = j.ExpiresAt.Local().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", j.ID, j.Title, j.Status, j.Threshold, expires)
	}
	return tw.Flush()
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job posting as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/jobs/%d", jobID))
		if err != nil {
			return err
		}
		var job api.JobPostingView
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		return printJSON(os.Stdout, job)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id> <active|filled|expired>",
	Short: "Change a job posting's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return setJobStatus(cmd.Context(), client, jobID, args[1])
	},
}

func setJobStatus(ctx context.Context, client *apiClient, jobID int64, status string) error {
	resp, err := client.patch(ctx, fmt.Sprintf("/jobs/%d/status", jobID), map[string]string{"status": status})
	if err != nil {
		return err
	}
	var job api.JobPostingView
	if err := decodeJSON(resp, &job); err != nil {
		return err
	}
	printSuccess("Job posting %d is now %s", job.ID, job.Status)
	return nil
}

func init() {
	jobsCmd.AddCommand(jobsImportCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
}

// --- candidates ---

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage candidates",
}

var candidatesImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import candidates from a JSON array",
	Long: `Import candidates from a JSON array of objects:

  [{"email":"ana@example.com","first_name":"Ana","kind":"jobseeker",
    "videos":[{"title":"Intro","description":"...","tags":["Go","SQL"]}]}]

Candidates whose email already exists are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		var reqs []api.CandidateRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return importCandidates(cmd.Context(), client, reqs)
	},
}

func init() {
	candidatesCmd.AddCommand(candidatesImportCmd)
}

// importCandidates posts each candidate. Duplicates are warned about; any
// other failure is counted and reported at the end.
func importCandidates(ctx context.Context, client *apiClient, reqs []api.CandidateRequest) error {
	var created, skipped, failed int
	for _, req := range reqs {
		resp, err := client.post(ctx, "/candidates", req)
		if err != nil {
			return err
		}
		var c api.CandidateView
		err = decodeJSON(resp, &c)
		var apiErr *apiError
		switch {
		case err == nil:
			created++
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
			skipped++
			printWarning("%s already exists, skipped", req.Email)
		default:
			failed++
			printError("%s: %v", req.Email, err)
		}
	}
	printSuccess("Imported %d candidates (%d skipped, %d failed)", created, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d candidates failed to import", failed)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token <value>",
	Short: "Store the API bearer token in the secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIToken(args[0]); err != nil {
			return err
		}
		printSuccess("API token saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configTokenCmd)
}
