package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RetrieveRequest represents the retrieval API request.
type RetrieveRequest struct {
	ThreadID string   `json:"thread_id"`
	Queries  []string `json:"queries"`
}

// RetrieveResponse represents the retrieval API response.
type RetrieveResponse struct {
	Contents []string `json:"contents"`
}

// maxQueries caps how many queries this client sends per call. The
// server accepts any number; the cap belongs to the caller.
const maxQueries = 5

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "retrieve <query>...",
		Short: "Retrieve relevant chunks for one or more queries",
		Long: `Retrieve the chunks most relevant to the given queries from a
thread's knowledge base. Results are deduplicated across queries.
At most 5 queries per call.

Example:
  medassist retrieve --thread th-123 "current medication" "known allergies"`,
		Args: cobra.RangeArgs(1, maxQueries),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRetrieve(cmd, threadID, args, outputJSON)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID (required)")
	cmd.MarkFlagRequired("thread")

	return cmd
}

func runRetrieve(cmd *cobra.Command, threadID string, queries []string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retrieve", RetrieveRequest{
		ThreadID: threadID,
		Queries:  queries,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	var result RetrieveResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(result.Contents) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}

	for i, content := range result.Contents {
		fmt.Println(content)
		if i < len(result.Contents)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
