package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

const defaultServerURL = "http://localhost:5000"

// adminClient calls the administrative API of a running server.
type adminClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *adminClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAdminCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("EDITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	client := func() *adminClient {
		return &adminClient{
			baseURL: v.GetString("admin.server"),
			apiKey:  v.GetString("auth.api_key"),
			http:    &http.Client{Timeout: v.GetDuration("admin.timeout")},
		}
	}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Control a running server through its administrative API",
	}
	flags := cmd.PersistentFlags()
	flags.String("server", defaultServerURL, "base URL of the running server (EDITAL_ADMIN_SERVER)")
	flags.String("api-key", "", "administrative API key (EDITAL_AUTH_API_KEY)")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	_ = v.BindPFlag("admin.server", flags.Lookup("server"))
	_ = v.BindPFlag("auth.api_key", flags.Lookup("api-key"))
	_ = v.BindPFlag("admin.timeout", flags.Lookup("timeout"))

	actions := []struct {
		use, short, path, done string
	}{
		{"start", "Start monitoring", "/api/start", "monitoring started"},
		{"stop", "Stop monitoring", "/api/stop", "monitoring stopped"},
		{"restart", "Stop and start monitoring", "/api/restart", "monitoring restarted"},
		{"check-now", "Run the next check immediately", "/api/check-now", "check scheduled"},
		{"reset-hash", "Forget the baseline fingerprint", "/api/reset-hash", "fingerprint reset"},
		{"clear-logs", "Clear the in-memory log", "/api/clear-logs", "logs cleared"},
		{"test-email", "Verify the SMTP connection", "/api/test-email", "smtp connection ok"},
	}
	for _, act := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   act.use,
			Short: act.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := client().do(cmd.Context(), http.MethodPost, act.path, nil); err != nil {
					return fmt.Errorf("%s failed: %w", act.use, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", act.done)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show monitor status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var status monitor.Status
			if err := c.do(cmd.Context(), http.MethodGet, "/api/status", &status); err != nil {
				return fmt.Errorf("status failed: %w", err)
			}
			var cfg struct {
				URL             string `json:"url"`
				IntervalMinutes int    `json:"interval_minutes"`
				Email           struct {
					Enabled bool `json:"enabled"`
				} `json:"email"`
			}
			if err := c.do(cmd.Context(), http.MethodGet, "/api/config", &cfg); err != nil {
				return fmt.Errorf("status failed: %w", err)
			}
			printStatus(cmd.OutOrStdout(), status, cfg.URL, cfg.IntervalMinutes, cfg.Email.Enabled)
			return nil
		},
	})
	return cmd
}

func printStatus(out io.Writer, status monitor.Status, url string, interval int, emailEnabled bool) {
	rule := strings.Repeat("=", 60)
	state := "STOPPED"
	if status.Running {
		state = "RUNNING"
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "EDITAL MONITOR STATUS")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "status: %s\n", state)
	fmt.Fprintf(out, "checks: %d\n", status.CycleCount)
	fmt.Fprintf(out, "changes detected: %d\n", status.ChangesDetected)
	if status.LastCheck != nil {
		fmt.Fprintf(out, "last check: %s\n", status.LastCheck.Format(time.DateTime))
	}
	if status.NextCheck != nil {
		fmt.Fprintf(out, "next check: %s\n", status.NextCheck.Format(time.DateTime))
	}
	if len(status.KeywordsFound) > 0 {
		fmt.Fprintf(out, "keywords found: %s\n", strings.Join(status.KeywordsFound, ", "))
	}
	fmt.Fprintf(out, "\nurl: %s\n", url)
	fmt.Fprintf(out, "interval: %d minutes\n", interval)
	email := "no"
	if emailEnabled {
		email = "yes"
	}
	fmt.Fprintf(out, "email enabled: %s\n", email)
	fmt.Fprintln(out, rule)
}
