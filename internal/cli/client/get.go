package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <resource_id>",
		Short: "Get a resource by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, resourceID string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/resources/" + resourceID)
	if err != nil {
		return fmt.Errorf("failed to get resource: %w", err)
	}

	var resource Resource
	if err := json.Unmarshal(resp.Data, &resource); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(resource, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("ID: %s\n", resource.ID)
	fmt.Printf("Thread: %s\n", resource.ThreadID)
	fmt.Printf("Title: %s\n", resource.Title)
	fmt.Printf("Type: %s\n", resource.FileType)
	fmt.Printf("Created: %s\n", resource.CreatedAt)
	if resource.Summary != "" {
		fmt.Printf("\n%s\n", resource.Summary)
	}

	return nil
}
