package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// IngestRequest represents the resource ingestion API request.
type IngestRequest struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type,omitempty"`
}

// IngestResponse represents the resource ingestion API response.
type IngestResponse struct {
	ResourceID   string `json:"resource_id"`
	ChunkCount   int    `json:"chunk_count"`
	FailedChunks int    `json:"failed_chunks"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		threadID string
		file     string
		title    string
		fileType string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Ingest a document into a thread",
		Long: `Ingest a document from stdin or a file into a thread's knowledge base.

Examples:
  # Ingest a referral letter from a file
  medassist add --thread th-123 --file referral.md --title "Referral letter"

  # Ingest from stdin
  cat labs.txt | medassist add --thread th-123 --title "Lab results"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAdd(cmd, threadID, file, title, fileType, outputJSON)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file (reads stdin when omitted)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (required)")
	cmd.Flags().StringVarP(&fileType, "type", "t", "", "File type (plain, markdown, pdf)")
	cmd.MarkFlagRequired("thread")
	cmd.MarkFlagRequired("title")

	return cmd
}

func runAdd(cmd *cobra.Command, threadID, file, title, fileType string, outputJSON bool) error {
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
		if fileType == "" {
			fileType = fileTypeFromExt(file)
		}
	} else {
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	if len(strings.TrimSpace(string(input))) == 0 {
		return fmt.Errorf("no input provided")
	}

	req := IngestRequest{
		ThreadID: threadID,
		Title:    title,
		Content:  string(input),
		FileType: fileType,
	}

	resp, err := api.Post("/resources", req)
	if err != nil {
		return fmt.Errorf("failed to ingest resource: %w", err)
	}

	var result IngestResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Ingested resource: %s\n", result.ResourceID)
	fmt.Printf("Chunks embedded: %d\n", result.ChunkCount)
	if result.FailedChunks > 0 {
		fmt.Printf("Warning: %d chunks failed to embed\n", result.FailedChunks)
	}

	return nil
}

func fileTypeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	default:
		return "plain"
	}
}
