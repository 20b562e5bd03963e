package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <resource_id>",
		Short: "Delete a resource and its embedded chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0])
		},
	}

	return cmd
}

func runDelete(cmd *cobra.Command, resourceID string) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete("/resources/" + resourceID); err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	fmt.Printf("Deleted resource: %s\n", resourceID)
	return nil
}
