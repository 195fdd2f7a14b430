package client

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/spf13/cobra"
)

// BatchCmd writes and saves one letter per company for the same role.
func BatchCmd() *cobra.Command {
	var (
		f         jobFlags
		companies []string
		delay     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate and save cover letters for several companies",
		Long: `Generates one cover letter per company for the same role and saves each one.
Generations run one after another, spaced by --delay (server default when unset).

Examples:
  coverdraft batch --title "Backend Engineer" --company Acme --company Globex
  coverdraft batch --title SRE --company Acme,Initech --description-file job.txt --delay 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, _ := LoadGlobalConfig()
			job, err := f.request(readFileFunc, defaults)
			if err != nil {
				return err
			}
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runBatch(cmd.OutOrStdout(), api, batchRequest(job, companies, delay), outputJSON(cmd))
		},
	}

	cmd.Flags().StringVar(&f.title, "title", "", "Job title (required)")
	cmd.Flags().StringSliceVar(&companies, "company", nil, "Company name, repeatable or comma separated (required)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Job description text")
	cmd.Flags().StringVar(&f.descFile, "description-file", "", "Read the job description from a file")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Tone of the letters (default professional)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Text generator (see 'coverdraft providers')")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between generations")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}

func batchRequest(job handlers.JobRequest, companies []string, delay time.Duration) handlers.BatchRequest {
	return handlers.BatchRequest{
		JobTitle:       job.JobTitle,
		JobDescription: job.JobDescription,
		Tone:           job.Tone,
		Provider:       job.Provider,
		Companies:      companies,
		DelaySeconds:   delay.Seconds(),
	}
}

func runBatch(out io.Writer, api *APIClient, req handlers.BatchRequest, asJSON bool) error {
	resp, err := api.Post("/cover-letters/batch", req)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	var result service.BatchResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	for _, item := range result.Items {
		if item.Status == service.BatchStatusSuccess {
			fmt.Fprintf(out, "ok    %-24s %s\n", item.Company, item.CoverLetterID)
			continue
		}
		fmt.Fprintf(out, "error %-24s %s\n", item.Company, item.Error)
	}
	fmt.Fprintf(out, "\n%d of %d letters saved\n", result.Succeeded, result.Total)
	return nil
}

// LettersCmd manages saved cover letters.
func LettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "letters",
		Short: "Browse, edit and rate saved cover letters",
	}
	cmd.AddCommand(lettersListCmd(), lettersShowCmd(), lettersEditCmd(), lettersRateCmd(), lettersDeleteCmd())
	return cmd
}

func lettersListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved letters, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runLettersList(cmd.OutOrStdout(), api, limit, cursor, outputJSON(cmd))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runLettersList(out io.Writer, api *APIClient, limit int, cursor string, asJSON bool) error {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/cover-letters"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	var list handlers.ListCoverLettersResponse
	if err := decodeData(resp, &list); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, list)
	}
	if len(list.Items) == 0 {
		fmt.Fprintln(out, "No saved letters.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-10s  %-6s  %-20s  %s\n", "ID", "DATE", "RATING", "COMPANY", "TITLE")
	for _, l := range list.Items {
		fmt.Fprintf(out, "%-36s  %-10s  %-6s  %-20s  %s\n", l.ID, l.CreatedAt.Format("2006-01-02"), ratingLabel(l.Rating), l.Company, l.JobTitle)
	}
	if list.HasMore && list.Cursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", list.Cursor)
	}
	return nil
}

func ratingLabel(r int) string {
	if r == 0 {
		return "-"
	}
	return strconv.Itoa(r) + "/5"
}

func lettersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <letter_id>",
		Short: "Print a saved letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/cover-letters/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get letter: %w", err)
			}
			return printLetter(cmd.OutOrStdout(), resp, outputJSON(cmd))
		},
	}
}

func printLetter(out io.Writer, resp *APIResponse, asJSON bool) error {
	var l domain.CoverLetter
	if err := decodeData(resp, &l); err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, l)
	}
	fmt.Fprintf(out, "%s at %s (%s)\n", l.JobTitle, l.Company, l.ID)
	fmt.Fprintf(out, "provider %s, rating %s, created %s\n\n", l.Provider, ratingLabel(l.Rating), l.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(out, strings.TrimSpace(l.Content))
	return nil
}

func lettersEditCmd() *cobra.Command {
	var (
		content string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "edit <letter_id>",
		Short: "Replace the text of a saved letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := content
			if file != "" {
				data, err := readFileFunc(file)
				if err != nil {
					return fmt.Errorf("failed to read letter: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("provide the new text with --content or --file")
			}
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runLetterUpdate(cmd.OutOrStdout(), api, args[0], handlers.UpdateCoverLetterRequest{Content: &text}, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "New letter text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the new letter text from a file")

	return cmd
}

func lettersRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <letter_id> <1-5|0>",
		Short: "Rate a saved letter, 0 clears the rating",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := parseRating(args[1])
			if err != nil {
				return err
			}
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runLetterUpdate(cmd.OutOrStdout(), api, args[0], handlers.UpdateCoverLetterRequest{Rating: &rating}, outputJSON(cmd))
		},
	}
}

func parseRating(s string) (int, error) {
	r, err := strconv.Atoi(s)
	if err != nil || r < 0 || r > domain.MaxCoverLetterRating {
		return 0, fmt.Errorf("rating must be 0 to %d, got %q", domain.MaxCoverLetterRating, s)
	}
	return r, nil
}

func runLetterUpdate(out io.Writer, api *APIClient, id string, req handlers.UpdateCoverLetterRequest, asJSON bool) error {
	resp, err := api.Patch("/cover-letters/"+url.PathEscape(id), req)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if asJSON {
		return printLetter(out, resp, true)
	}
	var l domain.CoverLetter
	if err := decodeData(resp, &l); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s (rating %s)\n", l.ID, ratingLabel(l.Rating))
	return nil
}

func lettersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <letter_id>",
		Short: "Delete a saved letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/cover-letters/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// ExperienceCmd prints the work history found in uploaded CVs.
func ExperienceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "experience",
		Short: "Show the work history extracted from your CVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runExperience(cmd.OutOrStdout(), api, outputJSON(cmd))
		},
	}
}

func runExperience(out io.Writer, api *APIClient, asJSON bool) error {
	resp, err := api.Get("/experience")
	if err != nil {
		return fmt.Errorf("experience request failed: %w", err)
	}
	var result struct {
		Experiences []domain.Experience `json:"experiences"`
	}
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	if len(result.Experiences) == 0 {
		fmt.Fprintln(out, "No dated positions found in your CVs.")
		return nil
	}
	for _, e := range result.Experiences {
		end := e.EndDate
		if e.Current {
			end = "present"
		}
		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		if e.Company != "" {
			title += " at " + e.Company
		}
		fmt.Fprintf(out, "%-40s  %s - %s  weight %.0f\n", title, e.StartDate, end, e.Weight)
	}
	return nil
}
