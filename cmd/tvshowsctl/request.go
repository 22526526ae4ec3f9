package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newRequestCommand(a *app) *cobra.Command {
	var (
		data        string
		contentType string
		showStatus  bool
	)

	cmd := &cobra.Command{
		Use:   "request <method> <path>",
		Short: "Send an authenticated request and print the response body",
		Long: "Send an authenticated request through the client's dispatcher. " +
			"Credentials are attached, an expired access credential is refreshed " +
			"once and the request retried.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			target := strings.TrimRight(client.Config().BaseURL, "/") + "/" + strings.TrimPrefix(args[1], "/")
			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), strings.ToUpper(args[0]), target, body)
			if err != nil {
				return err
			}
			if data != "" {
				req.Header.Set("Content-Type", contentType)
			}

			resp, err := client.Dispatch(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if showStatus {
				a.printf("%s\n", resp.Status)
			}
			if _, err := io.Copy(a.out, resp.Body); err != nil {
				return err
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body")
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "Content-Type for --data")
	cmd.Flags().BoolVarP(&showStatus, "include-status", "i", false, "Print the status line before the body")
	return cmd
}
