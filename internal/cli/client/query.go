package client

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/spf13/cobra"
)

// SearchCmd ranks chunks against a free-text query.
func SearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the most relevant passages across your documents",
		Long:  "Ranks indexed chunks by similarity to the query times the weight of their document.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd.OutOrStdout(), api, strings.Join(args, " "), topK, outputJSON(cmd))
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages (server default when unset)")

	return cmd
}

func runSearch(out io.Writer, api *APIClient, query string, topK int, asJSON bool) error {
	resp, err := api.Post("/retrieve", handlers.RetrieveRequest{Query: query, TopK: topK})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	var result handlers.RetrieveResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	if len(result.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	for i, r := range result.Results {
		fmt.Fprintf(out, "%d. %s [%s]\n", i+1, r.Filename, r.DocumentType)
		fmt.Fprintf(out, "   score %.3f = similarity %.3f x weight %.3f\n", r.Score, r.Similarity, r.Weight)
		fmt.Fprintf(out, "   %s\n", excerpt(r.Content, 200))
	}
	return nil
}

// StyleCmd prints the aggregated cover-letter style.
func StyleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "style",
		Short: "Show the writing style learned from your cover letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runStyle(cmd.OutOrStdout(), api, outputJSON(cmd))
		},
	}
}

func runStyle(out io.Writer, api *APIClient, asJSON bool) error {
	resp, err := api.Get("/style")
	if err != nil {
		return fmt.Errorf("style request failed: %w", err)
	}
	var style domain.AggregatedStyle
	if err := decodeData(resp, &style); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, style)
	}
	summary := service.SummarizeStyle(&style)
	if summary == "" {
		fmt.Fprintln(out, "No cover letters uploaded yet; no style constraints apply.")
		return nil
	}
	fmt.Fprintln(out, summary)
	return nil
}

var readFileFunc = os.ReadFile

// jobFlags are shared by context and generate.
type jobFlags struct {
	title       string
	company     string
	description string
	descFile    string
	tone        string
	provider    string
	topK        int
	budget      int
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Job title (required)")
	cmd.Flags().StringVar(&f.company, "company", "", "Company name (required)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Job description text")
	cmd.Flags().StringVar(&f.descFile, "description-file", "", "Read the job description from a file")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Tone of the letter (default professional)")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "Number of passages to retrieve")
	cmd.Flags().IntVar(&f.budget, "budget", 0, "Context budget in characters")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("company")
}

// request builds the job request. Provider and tone fall back to the
// defaults stored by 'coverdraft auth login'.
func (f *jobFlags) request(readFile func(string) ([]byte, error), defaults *GlobalConfig) (handlers.JobRequest, error) {
	desc := f.description
	if f.descFile != "" {
		data, err := readFile(f.descFile)
		if err != nil {
			return handlers.JobRequest{}, fmt.Errorf("failed to read job description: %w", err)
		}
		desc = string(data)
	}
	req := handlers.JobRequest{
		JobTitle:       f.title,
		Company:        f.company,
		JobDescription: strings.TrimSpace(desc),
		Tone:           f.tone,
		Provider:       f.provider,
		TopK:           f.topK,
		Budget:         f.budget,
	}
	if defaults != nil {
		if req.Tone == "" {
			req.Tone = defaults.Tone
		}
		if req.Provider == "" {
			req.Provider = defaults.Provider
		}
	}
	return req, nil
}

// ContextCmd prints the assembled generation context for a job.
func ContextCmd() *cobra.Command {
	var f jobFlags

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the weighted context a cover letter would be written from",
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, _ := LoadGlobalConfig()
			req, err := f.request(readFileFunc, defaults)
			if err != nil {
				return err
			}
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runContext(cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}
	f.register(cmd)

	return cmd
}

func runContext(out io.Writer, api *APIClient, req handlers.JobRequest, asJSON bool) error {
	resp, err := api.Post("/context", req)
	if err != nil {
		return fmt.Errorf("context request failed: %w", err)
	}
	var result service.ContextResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	p := result.Payload
	fmt.Fprintf(out, "Query: %s\n", result.Query)
	fmt.Fprintf(out, "Chunks: %d kept, %d dropped, %d chars (~%d tokens)\n\n", len(p.Chunks), p.Dropped, p.Size, p.EstimatedTokens)
	fmt.Fprintln(out, p.Text)
	return nil
}

// GenerateCmd writes a cover letter for a job.
func GenerateCmd() *cobra.Command {
	var (
		f    jobFlags
		save bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a cover letter for a job",
		Long: `Generates a cover letter from your weighted documents and learned style.

Examples:
  coverdraft generate --title "Backend Engineer" --company Acme --description-file job.txt
  coverdraft generate --title "SRE" --company Globex --provider anthropic --tone warm
  coverdraft generate --title "SRE" --company Globex --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, _ := LoadGlobalConfig()
			req, err := f.request(readFileFunc, defaults)
			if err != nil {
				return err
			}
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			if save {
				return runGenerateSaved(cmd.OutOrStdout(), api, req, outputJSON(cmd))
			}
			return runGenerate(cmd.OutOrStdout(), api, req, outputJSON(cmd))
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.provider, "provider", "", "Text generator (see 'coverdraft providers')")
	cmd.Flags().BoolVar(&save, "save", false, "Keep the letter in the history (see 'coverdraft letters')")

	return cmd
}

func runGenerate(out io.Writer, api *APIClient, req handlers.JobRequest, asJSON bool) error {
	resp, err := api.Post("/cover-letters/generate", req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	var result service.GenerationResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, result)
	}
	printGeneration(out, &result)
	return nil
}

func runGenerateSaved(out io.Writer, api *APIClient, req handlers.JobRequest, asJSON bool) error {
	resp, err := api.Post("/cover-letters", req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	var saved service.SavedLetter
	if err := decodeData(resp, &saved); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, saved)
	}
	if saved.Generation != nil {
		printGeneration(out, saved.Generation)
	}
	if saved.CoverLetter != nil {
		fmt.Fprintf(out, "\nSaved as %s\n", saved.CoverLetter.ID)
	}
	return nil
}

func printGeneration(out io.Writer, result *service.GenerationResult) {
	fmt.Fprintln(out, strings.TrimSpace(result.Letter))
	if result.UsedFallback {
		fmt.Fprintf(out, "\n(template letter: %s produced no text", result.Provider)
		if result.GeneratorError != "" {
			fmt.Fprintf(out, ": %s", result.GeneratorError)
		}
		fmt.Fprintln(out, ")")
	}
}

// ProvidersCmd lists registered text generators.
func ProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the text generators the server offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/providers")
			if err != nil {
				return fmt.Errorf("providers request failed: %w", err)
			}
			var result struct {
				Providers []string `json:"providers"`
				Default   string   `json:"default"`
			}
			if err := decodeData(resp, &result); err != nil {
				return err
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			for _, p := range result.Providers {
				marker := " "
				if p == result.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p)
			}
			return nil
		},
	}
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
