package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Call the loopback admin endpoints of a running server",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "state",
			Short: "Print world metrics and layout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return adminCall(cmd, http.MethodGet, baseURL, "/admin/v1/state", 5*time.Second)
			},
		},
		&cobra.Command{
			Use:   "snapshot",
			Short: "Ask the world loop to write a snapshot now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return adminCall(cmd, http.MethodPost, baseURL, "/admin/v1/snapshot", 10*time.Second)
			},
		},
		&cobra.Command{
			Use:   "remove-frame <id>",
			Short: "Detach a frame at the next tick boundary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := "/admin/v1/frames/remove?id=" + url.QueryEscape(args[0])
				return adminCall(cmd, http.MethodPost, baseURL, p, 5*time.Second)
			},
		},
	)
	return cmd
}

func adminCall(cmd *cobra.Command, method, baseURL, path string, timeout time.Duration) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequestWithContext(cmd.Context(), method, u, nil)
	if err != nil {
		return err
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
