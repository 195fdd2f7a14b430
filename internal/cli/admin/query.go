package admin

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/spf13/cobra"
)

func StyleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "style",
		Short: "Print the aggregated writing style of stored cover letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			style := a.documents.Style(cmd.Context())
			if outputFormat == "json" {
				return printJSON(style)
			}
			printStyle(style)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func printStyle(style *domain.AggregatedStyle) {
	summary := service.SummarizeStyle(style)
	if summary == "" {
		fmt.Println("No cover letters stored; no style constraints apply")
		return
	}
	fmt.Println(summary)
}

func RetrieveCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Rank stored chunks against a query",
		Long:  "Embeds the query and prints the best chunks ranked by similarity times document weight.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			query := strings.Join(args, " ")

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.retriever.Retrieve(cmd.Context(), query, topK)
			if err != nil {
				return fmt.Errorf("retrieval failed: %w", err)
			}

			if outputFormat == "json" {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No matching chunks")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%s | weight %.3f | similarity %.3f | score %.3f] %s\n",
					i+1, r.DocumentType, r.Weight, r.Similarity, r.Score, r.Filename)
				fmt.Printf("   %s\n", excerpt(r.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (0 uses the configured default)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
