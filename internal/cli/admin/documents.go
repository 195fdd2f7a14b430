package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloo-solutions/coverdraft/internal/cli"
	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/jobs"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/spf13/cobra"
)

func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage stored documents",
		Long:    "Ingest, list, reweight and reindex documents directly against the database",
	}

	cmd.AddCommand(DocumentsIngestCmd())
	cmd.AddCommand(DocumentsListCmd())
	cmd.AddCommand(DocumentsWeightCmd())
	cmd.AddCommand(DocumentsReindexCmd())

	return cmd
}

func DocumentsIngestCmd() *cobra.Command {
	var (
		docType string
		company string
		weight  float64
		noIndex bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest one or more documents",
		Long: `Ingest documents from local files. The type, date and company are read from
names like 2024-03-01_CV_Acme.pdf unless given explicitly. Documents are indexed
in-process unless --no-index is set, in which case a running server picks them up.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDocumentsIngest(cmd.Context(), args, service.IngestInput{
				Type:         docType,
				Company:      company,
				ManualWeight: weight,
			}, !noIndex, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (cv, cover_letter, linkedin, other)")
	cli.SetDocumentTypeEnum(cmd, "type")
	cmd.Flags().StringVar(&company, "company", "", "Company the document relates to")
	cmd.Flags().Float64VarP(&weight, "weight", "w", 1.0, "Manual weight multiplier")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Queue indexing instead of running it now")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentsIngest(ctx context.Context, paths []string, base service.IngestInput, index bool, outputFormat string) error {
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	results := make([]*service.IngestResult, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		input := base
		input.Filename = filepath.Base(p)
		input.ContentType = mime.TypeByExtension(filepath.Ext(p))
		input.Data = data

		res, err := a.documents.Ingest(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", p, err)
		}
		results = append(results, res)
	}

	if index {
		for i := 0; i < len(results); i += jobs.DefaultBatchSize {
			if err := a.worker.ProcessJobs(ctx); err != nil {
				return fmt.Errorf("failed to index documents: %w", err)
			}
		}
	}

	if outputFormat == "json" {
		items := make([]map[string]interface{}, 0, len(results))
		for _, r := range results {
			items = append(items, map[string]interface{}{
				"id":             r.Document.ID,
				"filename":       r.Document.Filename,
				"type":           r.Document.Type,
				"canonical_date": r.Document.CanonicalDate,
				"date_source":    r.Document.DateSource,
				"job_id":         r.JobID,
				"weight":         r.Breakdown.Weight,
				"weight_clamped": r.WeightClamped,
			})
		}
		return printJSON(items)
	}

	for _, r := range results {
		fmt.Printf("Ingested %s (%s) as %s, dated %s from %s, weight %.3f\n",
			r.Document.Filename, r.Document.ID, r.Document.Type,
			r.Document.CanonicalDate.Format("2006-01-02"), r.Document.DateSource, r.Breakdown.Weight)
		if r.WeightClamped {
			fmt.Printf("  manual weight clamped to %.2f\n", r.Document.ManualWeight)
		}
	}
	if !index {
		fmt.Printf("%d document(s) queued for indexing\n", len(results))
	}
	return nil
}

func DocumentsListCmd() *cobra.Command {
	var (
		docType string
		limit   int
		cursor  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDocumentsList(cmd.Context(), service.ListDocumentsInput{Type: docType, Cursor: cursor, Limit: limit}, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Only list documents of this type")
	cli.SetDocumentTypeEnum(cmd, "type")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentsList(ctx context.Context, input service.ListDocumentsInput, outputFormat string) error {
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.documents.List(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if outputFormat == "json" {
		items := make([]map[string]interface{}, 0, len(out.Items))
		for _, d := range out.Items {
			items = append(items, map[string]interface{}{
				"id":             d.ID,
				"filename":       d.Filename,
				"type":           d.Type,
				"canonical_date": d.CanonicalDate,
				"manual_weight":  d.ManualWeight,
				"weight":         a.weights.ComputeWeight(d),
				"index_status":   d.IndexStatus,
			})
		}
		return printJSON(map[string]interface{}{
			"items":    items,
			"cursor":   out.Cursor,
			"has_more": out.HasMore,
		})
	}

	if len(out.Items) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	fmt.Printf("%-36s  %-12s  %-10s  %-8s  %-8s  %s\n", "ID", "TYPE", "DATE", "WEIGHT", "STATUS", "FILENAME")
	for _, d := range out.Items {
		fmt.Printf("%-36s  %-12s  %-10s  %-8.3f  %-8s  %s\n",
			d.ID, d.Type, d.CanonicalDate.Format("2006-01-02"), a.weights.ComputeWeight(d), d.IndexStatus, d.Filename)
	}
	if out.HasMore {
		fmt.Printf("\nMore results available. Use --cursor %s\n", out.Cursor)
	}
	return nil
}

func DocumentsWeightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weight <id> [manual-weight]",
		Short: "Show or set a document's weight",
		Long:  "Without a value, prints the weight breakdown. With a value, sets the manual multiplier (clamped to the configured range).",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDocumentsWeight(cmd.Context(), args, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentsWeight(ctx context.Context, args []string, outputFormat string) error {
	var (
		manual float64
		set    = len(args) == 2
	)
	if set {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("manual weight must be a positive number, got %q", args[1])
		}
		manual = v
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	var (
		breakdown service.WeightBreakdown
		clamped   bool
	)
	if set {
		upd, err := a.documents.SetManualWeight(ctx, args[0], manual)
		if err != nil {
			return fmt.Errorf("failed to set weight: %w", err)
		}
		breakdown, clamped = upd.Breakdown, upd.Clamped
	} else {
		_, b, err := a.documents.WeightBreakdown(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get weight: %w", err)
		}
		breakdown = b
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"id":        args[0],
			"breakdown": breakdown,
			"clamped":   clamped,
		})
	}

	fmt.Printf("Document %s\n", args[0])
	fmt.Printf("  base:    %.3f\n", breakdown.BaseWeight)
	fmt.Printf("  type:    %.3f\n", breakdown.TypeWeight)
	fmt.Printf("  recency: %.3f (%.0f days old)\n", breakdown.RecencyMultiplier, breakdown.DaysSince)
	fmt.Printf("  manual:  %.3f\n", breakdown.ManualWeight)
	fmt.Printf("  weight:  %.3f\n", breakdown.Weight)
	if clamped {
		fmt.Println("  (manual weight was clamped to the configured range)")
	}
	return nil
}

func DocumentsReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <id>",
		Short: "Queue a document for re-chunking and re-embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			job, err := a.documents.Reindex(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to reindex: %w", err)
			}
			fmt.Printf("Reindex queued: job %s\n", job.ID)
			return nil
		},
	}

	return cmd
}

// openApp loads configuration and wires services for a one-shot command.
// Admin commands never migrate; serve owns the schema.
func openApp(ctx context.Context, warm bool) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{warm: warm})
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
