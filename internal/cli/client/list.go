package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Resource represents a resource as returned by the API.
type Resource struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at"`
}

// ListResponse represents the resource listing API response.
type ListResponse struct {
	Items   []Resource `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		threadID string
		limit    int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a thread's resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, threadID, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.MarkFlagRequired("thread")

	return cmd
}

func runList(cmd *cobra.Command, threadID string, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/resources?thread_id=%s&limit=%d", threadID, limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}

	var listResp ListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No resources found.")
		return nil
	}

	for i, r := range listResp.Items {
		fmt.Printf("%d. %s (%s)\n", i+1, r.Title, r.FileType)
		if r.Summary != "" {
			summary := r.Summary
			if len(summary) > 100 {
				summary = summary[:97] + "..."
			}
			fmt.Printf("   %s\n", summary)
		}
		fmt.Printf("   ID: %s\n", r.ID)
		if i < len(listResp.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}
