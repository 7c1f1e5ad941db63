package meili

import (
	"encoding/json"

	"github.com/meilisearch/meilisearch-go"
	"github.com/webpilot/backend/pkg/logger"
)

const (
	ReportsIndex = "reports"
)

// ReportDocument is a page report flattened for full-text search
type ReportDocument struct {
	ID          string   `json:"id"`
	TaskID      string   `json:"task_id"`
	AgentID     string   `json:"agent_id,omitempty"`
	Query       string   `json:"query"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	MainText    string   `json:"main_text,omitempty"`
	KeyPoints   []string `json:"key_points,omitempty"`
	IndexedAt   string   `json:"indexed_at"`
}

// Client wraps the meilisearch-go client
type Client struct {
	client meilisearch.ServiceManager
}

// New connects to Meilisearch and configures the reports index
func New(url, apiKey string) (*Client, error) {
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))

	if _, err := client.Health(); err != nil {
		return nil, err
	}

	c := &Client{client: client}

	if err := c.setupIndexes(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) setupIndexes() error {
	log := logger.Log

	_, err := c.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        ReportsIndex,
		PrimaryKey: "id",
	})
	if err != nil {
		log.Debug().Str("index", ReportsIndex).Msg("index already exists")
	} else {
		log.Info().Str("index", ReportsIndex).Msg("index created")
	}

	reportsIndex := c.client.Index(ReportsIndex)

	currentSettings, err := reportsIndex.GetSettings()
	if err != nil {
		log.Warn().Err(err).Msg("failed to get current settings, will update all")
		currentSettings = &meilisearch.Settings{}
	}

	searchable := []string{"title", "query", "main_text", "key_points", "description"}
	if !stringSlicesEqual(currentSettings.SearchableAttributes, searchable) {
		if _, err := reportsIndex.UpdateSearchableAttributes(&searchable); err != nil {
			log.Warn().Err(err).Msg("failed to update searchable attributes")
		} else {
			log.Info().Strs("attrs", searchable).Msg("searchable attributes updated")
		}
	}

	filterable := []string{"task_id", "agent_id", "url"}
	if !stringSlicesEqual(currentSettings.FilterableAttributes, filterable) {
		filterableIface := make([]interface{}, len(filterable))
		for i, v := range filterable {
			filterableIface[i] = v
		}
		if _, err := reportsIndex.UpdateFilterableAttributes(&filterableIface); err != nil {
			log.Warn().Err(err).Msg("failed to update filterable attributes")
		} else {
			log.Info().Strs("attrs", filterable).Msg("filterable attributes updated")
		}
	}

	log.Info().Str("index", ReportsIndex).Msg("meilisearch index configured")
	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IndexReports indexes a batch of reports
func (c *Client) IndexReports(docs []ReportDocument) error {
	if len(docs) == 0 {
		return nil
	}
	pk := "id"
	_, err := c.client.Index(ReportsIndex).AddDocuments(docs, &pk)
	return err
}

// SearchResult is a page of matching reports
type SearchResult struct {
	Hits             []ReportDocument `json:"hits"`
	TotalHits        int64            `json:"totalHits"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

// SearchReports runs a full-text search over indexed reports
func (c *Client) SearchReports(query string, filters string, limit int64) (*SearchResult, error) {
	searchParams := &meilisearch.SearchRequest{
		Query: query,
		Limit: limit,
	}
	if filters != "" {
		searchParams.Filter = filters
	}

	resp, err := c.client.Index(ReportsIndex).Search(query, searchParams)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		TotalHits:        resp.EstimatedTotalHits,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}

	for _, hit := range resp.Hits {
		result.Hits = append(result.Hits, hitToReportDocument(hit))
	}

	return result, nil
}

// ReportsByAgent returns the most recent reports produced for an agent
func (c *Client) ReportsByAgent(agentID string, limit int64) (*SearchResult, error) {
	return c.SearchReports("", `agent_id = "`+agentID+`"`, limit)
}

// DeleteReport removes a report from the index
func (c *Client) DeleteReport(id string) error {
	_, err := c.client.Index(ReportsIndex).DeleteDocument(id)
	return err
}

// DeleteByTaskID removes every report a task produced
func (c *Client) DeleteByTaskID(taskID string) error {
	_, err := c.client.Index(ReportsIndex).DeleteDocumentsByFilter(`task_id = "` + taskID + `"`)
	return err
}

func hitToReportDocument(hit interface{}) ReportDocument {
	var doc ReportDocument
	b, err := json.Marshal(hit)
	if err != nil {
		return doc
	}
	json.Unmarshal(b, &doc)
	return doc
}
