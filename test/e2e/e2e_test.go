//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestResult struct {
	ResourceID   string `json:"resource_id"`
	ChunkCount   int    `json:"chunk_count"`
	FailedChunks int    `json:"failed_chunks"`
}

type resourceResult struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	FileType string `json:"file_type"`
}

type listResult struct {
	Items   []resourceResult `json:"items"`
	Cursor  string           `json:"cursor"`
	HasMore bool             `json:"has_more"`
}

type retrieveResult struct {
	Contents []string `json:"contents"`
}

type synthesizeResult struct {
	Document       string   `json:"document"`
	FailedSections []string `json:"failed_sections"`
}

const medicationNote = `Current medication list for the patient.
The patient takes lisinopril 10mg daily for hypertension.
Metformin 500mg twice daily controls the type 2 diabetes.
A daily low-dose aspirin was added after the cardiology consult.
No known drug allergies have been recorded for this patient.
The lisinopril dose was doubled at the last review because blood pressure stayed high.`

const historyNote = `Patient history summary.
The patient is a 58 year old with a ten year history of hypertension.
Type 2 diabetes was diagnosed five years ago.
A cardiology consult last spring found mild left ventricular hypertrophy.
The patient reports good exercise tolerance and no chest pain.`

func TestE2E_HealthAndAuth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health is open", func(t *testing.T) {
		_, err := env.Get("/health", "")
		assert.NoError(t, err)
	})

	t.Run("protected routes require a token", func(t *testing.T) {
		_, err := env.Get("/resources?thread_id=t", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		_, err := env.Get("/resources?thread_id=t", "wrong-token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func TestE2E_KnowledgeLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	threadID := "thread-e2e-1"

	var medicationID string

	t.Run("ingest splits and embeds the document", func(t *testing.T) {
		resp, err := env.Post("/resources", map[string]string{
			"thread_id": threadID,
			"title":     "Medication list",
			"content":   medicationNote,
		}, testAPIToken)
		require.NoError(t, err)

		var result ingestResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.NotEmpty(t, result.ResourceID)
		assert.Greater(t, result.ChunkCount, 1)
		assert.Zero(t, result.FailedChunks)
		medicationID = result.ResourceID
	})

	t.Run("ingest a second document", func(t *testing.T) {
		resp, err := env.Post("/resources", map[string]string{
			"thread_id": threadID,
			"title":     "History",
			"content":   historyNote,
			"file_type": "markdown",
		}, testAPIToken)
		require.NoError(t, err)

		var result ingestResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Zero(t, result.FailedChunks)
	})

	t.Run("get returns the summarized resource", func(t *testing.T) {
		resp, err := env.Get("/resources/"+medicationID, testAPIToken)
		require.NoError(t, err)

		var resource resourceResult
		require.NoError(t, json.Unmarshal(resp.Data, &resource))
		assert.Equal(t, threadID, resource.ThreadID)
		assert.Equal(t, "Medication list", resource.Title)
		assert.Contains(t, resource.Summary, "Summary:")
	})

	t.Run("list returns both resources newest first", func(t *testing.T) {
		resp, err := env.Get("/resources?thread_id="+threadID, testAPIToken)
		require.NoError(t, err)

		var list listResult
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Items, 2)
		assert.False(t, list.HasMore)
	})

	t.Run("list paginates with a cursor", func(t *testing.T) {
		resp, err := env.Get("/resources?thread_id="+threadID+"&limit=1", testAPIToken)
		require.NoError(t, err)

		var page1 listResult
		require.NoError(t, json.Unmarshal(resp.Data, &page1))
		require.Len(t, page1.Items, 1)
		require.True(t, page1.HasMore)
		require.NotEmpty(t, page1.Cursor)

		resp, err = env.Get(fmt.Sprintf("/resources?thread_id=%s&limit=1&cursor=%s", threadID, page1.Cursor), testAPIToken)
		require.NoError(t, err)

		var page2 listResult
		require.NoError(t, json.Unmarshal(resp.Data, &page2))
		require.Len(t, page2.Items, 1)
		assert.NotEqual(t, page1.Items[0].ID, page2.Items[0].ID)
	})

	t.Run("retrieve finds medication chunks for a medication query", func(t *testing.T) {
		resp, err := env.Post("/retrieve", map[string]interface{}{
			"thread_id": threadID,
			"queries":   []string{"lisinopril metformin medication dose"},
		}, testAPIToken)
		require.NoError(t, err)

		var result retrieveResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Contents)
		assert.Contains(t, result.Contents[0], "lisinopril")
	})

	t.Run("retrieve deduplicates across queries", func(t *testing.T) {
		resp, err := env.Post("/retrieve", map[string]interface{}{
			"thread_id": threadID,
			"queries": []string{
				"lisinopril metformin medication dose",
				"metformin lisinopril dose medication",
			},
		}, testAPIToken)
		require.NoError(t, err)

		var result retrieveResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		seen := map[string]bool{}
		for _, c := range result.Contents {
			assert.False(t, seen[c], "duplicate chunk returned")
			seen[c] = true
		}
	})

	t.Run("retrieve is scoped to the thread", func(t *testing.T) {
		resp, err := env.Post("/retrieve", map[string]interface{}{
			"thread_id": "another-thread",
			"queries":   []string{"lisinopril"},
		}, testAPIToken)
		require.NoError(t, err)

		var result retrieveResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Empty(t, result.Contents)
	})

	t.Run("synthesize assembles sections in order", func(t *testing.T) {
		resp, err := env.Post("/synthesize", map[string]interface{}{
			"thread_id": threadID,
			"sections": []map[string]string{
				{"title": "History", "instructions": "Summarize the relevant history."},
				{"title": "Medication", "instructions": "List the current medication."},
			},
		}, testAPIToken)
		require.NoError(t, err)

		var result synthesizeResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Empty(t, result.FailedSections)

		historyIdx := strings.Index(result.Document, "# History")
		medicationIdx := strings.Index(result.Document, "# Medication")
		require.GreaterOrEqual(t, historyIdx, 0)
		require.Greater(t, medicationIdx, historyIdx)
		assert.Contains(t, result.Document, "Content for Medication")
	})

	t.Run("delete removes the resource and its chunks", func(t *testing.T) {
		_, err := env.Delete("/resources/"+medicationID, testAPIToken)
		require.NoError(t, err)

		_, err = env.Get("/resources/"+medicationID, testAPIToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		var count int
		err = env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM embedded_chunks WHERE resource_id = $1", medicationID).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestE2E_Validation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing thread_id", map[string]string{"title": "t", "content": "c"}},
		{"missing title", map[string]string{"thread_id": "t", "content": "c"}},
		{"missing content", map[string]string{"thread_id": "t", "title": "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Post("/resources", tt.body, testAPIToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "400")
		})
	}

	t.Run("synthesize rejects empty sections", func(t *testing.T) {
		_, err := env.Post("/synthesize", map[string]interface{}{
			"thread_id": "t",
			"sections":  []map[string]string{},
		}, testAPIToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}
