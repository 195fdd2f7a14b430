package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/cli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// newClient resolves the API client for a command, loading .env first.
func newClient(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()
	return NewAPIClientWithCmd(cmd)
}

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func decodeData(resp *APIResponse, v interface{}) error {
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// AddCmd uploads documents.
func AddCmd() *cobra.Command {
	var (
		docType string
		company string
		weight  float64
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Upload CVs, cover letters and profiles",
		Long: `Upload one or more documents. Type, date and company are inferred from names
like 2024-03-01_CV_Acme.pdf unless given explicitly.

Examples:
  coverdraft add 2024-03-01_CV_Acme.pdf
  coverdraft add letter.txt --type cover_letter --company Globex --weight 1.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			var progress ProgressFunc
			if !quiet && !outputJSON(cmd) {
				progress = stderrProgress()
			}
			return runAdd(cmd.OutOrStdout(), api, args, DocumentUpload{Type: docType, Company: company, ManualWeight: weight}, progress, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type (cv, cover_letter, linkedin, other)")
	cli.SetDocumentTypeEnum(cmd, "type")
	cmd.Flags().StringVar(&company, "company", "", "Company the document relates to")
	cmd.Flags().Float64VarP(&weight, "weight", "w", 0, "Manual weight multiplier (server default when unset)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide upload progress")

	return cmd
}

func stderrProgress() ProgressFunc {
	return func(current, total int64) {
		if total <= 0 {
			return
		}
		fmt.Fprintf(os.Stderr, "\ruploading... %3d%%", current*100/total)
		if current >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func runAdd(out io.Writer, api *APIClient, paths []string, base DocumentUpload, progress ProgressFunc, asJSON bool) error {
	results := make([]handlers.IngestResponse, 0, len(paths))
	for _, p := range paths {
		u := base
		u.Path = p
		resp, err := api.UploadDocument(u, progress)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", p, err)
		}
		var ingest handlers.IngestResponse
		if err := decodeData(resp, &ingest); err != nil {
			return err
		}
		results = append(results, ingest)
	}

	if asJSON {
		return printJSON(out, results)
	}
	for _, r := range results {
		d := r.Document
		fmt.Fprintf(out, "Added %s (%s)\n", d.Filename, d.ID)
		fmt.Fprintf(out, "  type %s, dated %s (%s), weight %.3f\n", d.Type, d.CanonicalDate, d.DateSource, r.Breakdown.Weight)
		if r.WeightClamped {
			fmt.Fprintf(out, "  manual weight clamped to %.2f\n", d.ManualWeight)
		}
	}
	return nil
}

// ListCmd lists documents.
func ListCmd() *cobra.Command {
	var (
		docType string
		limit   int
		cursor  string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runList(cmd.OutOrStdout(), api, docType, limit, cursor, outputJSON(cmd))
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Filter by document type")
	cli.SetDocumentTypeEnum(cmd, "type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(out io.Writer, api *APIClient, docType string, limit int, cursor string, asJSON bool) error {
	q := url.Values{}
	if docType != "" {
		q.Set("type", docType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	var list handlers.ListDocumentsResponse
	if err := decodeData(resp, &list); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, list)
	}
	if len(list.Items) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-12s  %-10s  %-7s  %-8s  %s\n", "ID", "TYPE", "DATE", "WEIGHT", "STATUS", "FILENAME")
	for _, d := range list.Items {
		fmt.Fprintf(out, "%-36s  %-12s  %-10s  %-7.3f  %-8s  %s\n", d.ID, d.Type, d.CanonicalDate, d.Weight, d.IndexStatus, d.Filename)
	}
	if list.HasMore && list.Cursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", list.Cursor)
	}
	return nil
}

// GetCmd shows one document.
func GetCmd() *cobra.Command {
	var download string

	cmd := &cobra.Command{
		Use:     "get <document_id>",
		Aliases: []string{"view"},
		Short:   "Show a document and its extracted text",
		Long:    "Shows a document. With --download, saves the original upload to the given path.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			if download != "" {
				return runDownload(cmd.OutOrStdout(), api, args[0], download)
			}
			return runGet(cmd.OutOrStdout(), api, args[0], outputJSON(cmd))
		},
	}

	cmd.Flags().StringVar(&download, "download", "", "Save the original file to this path")

	return cmd
}

func runGet(out io.Writer, api *APIClient, id string, asJSON bool) error {
	resp, err := api.Get("/documents/" + url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	var doc handlers.DocumentResponse
	if err := decodeData(resp, &doc); err != nil {
		return err
	}

	if asJSON {
		return printJSON(out, doc)
	}
	fmt.Fprintf(out, "Filename: %s\n", doc.Filename)
	fmt.Fprintf(out, "Type: %s\n", doc.Type)
	if doc.Company != "" {
		fmt.Fprintf(out, "Company: %s\n", doc.Company)
	}
	fmt.Fprintf(out, "Date: %s (from %s)\n", doc.CanonicalDate, doc.DateSource)
	fmt.Fprintf(out, "Weight: %.3f (manual %.2f)\n", doc.Weight, doc.ManualWeight)
	fmt.Fprintf(out, "Index: %s\n", doc.IndexStatus)
	if doc.IndexError != "" {
		fmt.Fprintf(out, "Index error: %s\n", doc.IndexError)
	}
	fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(doc.Content))
	return nil
}

func runDownload(out io.Writer, api *APIClient, id, path string) error {
	resp, err := api.Get("/documents/" + url.PathEscape(id) + "/source")
	if err != nil {
		return fmt.Errorf("failed to get download link: %w", err)
	}
	var link struct {
		URL string `json:"url"`
	}
	if err := decodeData(resp, &link); err != nil {
		return err
	}
	if err := api.DownloadFile(link.URL, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", path)
	return nil
}

// DeleteCmd removes a document.
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <document_id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document and its chunks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/documents/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// WeightCmd shows or sets a document's manual weight.
func WeightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weight <document_id> [manual-weight]",
		Short: "Show a document's weight breakdown or set its manual multiplier",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runWeight(cmd.OutOrStdout(), api, args, outputJSON(cmd))
		},
	}
}

func runWeight(out io.Writer, api *APIClient, args []string, asJSON bool) error {
	path := "/documents/" + url.PathEscape(args[0]) + "/weight"

	var (
		resp *APIResponse
		err  error
	)
	if len(args) == 2 {
		v, perr := strconv.ParseFloat(args[1], 64)
		if perr != nil || v <= 0 {
			return fmt.Errorf("manual weight must be a positive number, got %q", args[1])
		}
		resp, err = api.Patch(path, map[string]float64{"manual_weight": v})
	} else {
		resp, err = api.Get(path)
	}
	if err != nil {
		return fmt.Errorf("weight request failed: %w", err)
	}

	var w handlers.WeightResponse
	if err := decodeData(resp, &w); err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, w)
	}

	b := w.Breakdown
	fmt.Fprintf(out, "Document %s\n", w.DocumentID)
	fmt.Fprintf(out, "  base:    %.3f\n", b.BaseWeight)
	fmt.Fprintf(out, "  type:    %.3f\n", b.TypeWeight)
	fmt.Fprintf(out, "  recency: %.3f (%.0f days old)\n", b.RecencyMultiplier, b.DaysSince)
	fmt.Fprintf(out, "  manual:  %.3f\n", b.ManualWeight)
	fmt.Fprintf(out, "  weight:  %.3f\n", b.Weight)
	if w.Clamped {
		fmt.Fprintln(out, "  (manual weight was clamped to the configured range)")
	}
	return nil
}

// ReindexCmd re-queues a document for chunking and embedding.
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <document_id>",
		Short: "Queue a document for re-chunking and re-embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newClient(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Post("/documents/"+url.PathEscape(args[0])+"/reindex", nil); err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reindex queued for %s\n", args[0])
			return nil
		},
	}
}
