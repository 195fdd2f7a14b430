package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the server address and API token",
		Long:  "Login, logout, and check which server the coverdraft CLI talks to",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var config GlobalConfig

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the server URL, API token and generation defaults",
		Long: `Store the API URL and token in the global config (~/.config/coverdraft/config.json).
--provider and --tone become the defaults for 'generate' and 'context'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.OutOrStdout(), config)
		},
	}

	cmd.Flags().StringVar(&config.APIToken, "token", "", "API token (leave empty for an unauthenticated server)")
	cmd.Flags().StringVar(&config.APIURL, "url", defaultAPIURL, "API URL")
	cmd.Flags().StringVar(&config.Provider, "provider", "", "Default text generator")
	cmd.Flags().StringVar(&config.Tone, "tone", "", "Default cover letter tone")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove stored credentials from the global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd.OutOrStdout())
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the server URL and token come from",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAuthStatus(cmd.OutOrStdout(), outputJSON)
		},
	}
}

func runAuthLogin(out io.Writer, config GlobalConfig) error {
	apiURL := strings.TrimRight(strings.TrimSpace(config.APIURL), "/")
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q (expected http(s)://host[:port])", apiURL)
	}

	config.APIURL = apiURL
	config.APIToken = strings.TrimSpace(config.APIToken)
	config.Provider = strings.TrimSpace(config.Provider)
	config.Tone = strings.TrimSpace(config.Tone)
	if err := SaveGlobalConfig(&config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "Saved server %s\n", apiURL)
	if config.Provider != "" || config.Tone != "" {
		fmt.Fprintf(out, "Generation defaults: provider=%q tone=%q\n", config.Provider, config.Tone)
	}
	return nil
}

func runAuthLogout(out io.Writer) error {
	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Fprintln(out, "Credentials cleared")
	return nil
}

func runAuthStatus(out io.Writer, outputJSON bool) error {
	source, apiToken, apiURL := GetCredentialSource("", "")
	defaults, _ := LoadGlobalConfig()
	if defaults == nil {
		defaults = &GlobalConfig{}
	}

	if outputJSON {
		status := map[string]interface{}{
			"configured": source != SourceNone,
			"source":     string(source),
		}
		if source != SourceNone {
			status["api_url"] = apiURL
			status["api_token"] = maskToken(apiToken)
		}
		if defaults.Provider != "" {
			status["provider"] = defaults.Provider
		}
		if defaults.Tone != "" {
			status["tone"] = defaults.Tone
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if source == SourceNone {
		fmt.Fprintf(out, "No server configured, using %s\n", defaultAPIURL)
		fmt.Fprintln(out, "Run 'coverdraft auth login' to store a server URL and token")
		return nil
	}

	fmt.Fprintf(out, "Source: %s\n", source)
	fmt.Fprintf(out, "API URL: %s\n", apiURL)
	fmt.Fprintf(out, "API Token: %s\n", maskToken(apiToken))
	if defaults.Provider != "" {
		fmt.Fprintf(out, "Provider: %s\n", defaults.Provider)
	}
	if defaults.Tone != "" {
		fmt.Fprintf(out, "Tone: %s\n", defaults.Tone)
	}
	return nil
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) < 12:
		return "***"
	default:
		return token[:4] + "..." + token[len(token)-4:]
	}
}
