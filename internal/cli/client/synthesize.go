package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// SectionSpec represents one section of a synthesis request.
type SectionSpec struct {
	Title         string `json:"title"`
	Example       string `json:"example,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
	SystemMessage string `json:"system_message,omitempty"`
}

// SynthesizeRequest represents the document synthesis API request.
type SynthesizeRequest struct {
	ThreadID string        `json:"thread_id"`
	Sections []SectionSpec `json:"sections"`
	FailFast bool          `json:"fail_fast,omitempty"`
}

// SynthesizeResponse represents the document synthesis API response.
type SynthesizeResponse struct {
	Document       string   `json:"document"`
	FailedSections []string `json:"failed_sections"`
}

// SynthesizeCmd creates the synthesize command.
func SynthesizeCmd() *cobra.Command {
	var (
		threadID string
		file     string
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Generate a document from section specs",
		Long: `Generate a multi-section document from the thread's knowledge base.

The section specs are read as a JSON array from stdin or a file:

  [
    {"title": "Chief complaint", "instructions": "...", "example": "..."},
    {"title": "Medication", "instructions": "..."}
  ]

The assembled markdown document is written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSynthesize(cmd, threadID, file, failFast, outputJSON)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Section specs file (reads stdin when omitted)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort on the first section failure instead of leaving a placeholder")
	cmd.MarkFlagRequired("thread")

	return cmd
}

func runSynthesize(cmd *cobra.Command, threadID, file string, failFast, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	var input []byte
	if file != "" {
		input, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
	} else {
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	var sections []SectionSpec
	if err := json.Unmarshal(input, &sections); err != nil {
		return fmt.Errorf("failed to parse section specs: %w - expected a JSON array", err)
	}
	if len(sections) == 0 {
		return fmt.Errorf("no sections provided")
	}

	resp, err := api.Post("/synthesize", SynthesizeRequest{
		ThreadID: threadID,
		Sections: sections,
		FailFast: failFast,
	})
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	var result SynthesizeResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(result.Document)
	for _, title := range result.FailedSections {
		fmt.Fprintf(os.Stderr, "Warning: section %q could not be generated\n", title)
	}

	return nil
}
