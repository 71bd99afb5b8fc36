// Package gsc is the Google Search Console plugin connector. It exposes
// a closed set of read-only tools over the Search Console API, using
// service-account credentials from the organization's plugin
// registration.
package gsc

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	searchconsole "google.golang.org/api/searchconsole/v1"

	"github.com/siteagent/siteagent/internal/mcp"
	"github.com/siteagent/siteagent/internal/orchestrator"
)

// PluginName is the registry key this connector is dispatched under.
const PluginName = "google search console"

// credentialsEnv is the fallback when a registration carries no
// credentials of its own.
const credentialsEnv = "GSC_CREDENTIALS_JSON"

const (
	toolFetchProjects      = "fetchProjects"
	toolListSitemaps       = "listSitemaps"
	toolExportTopPages     = "exportTopPages"
	toolGetSearchAnalytics = "getSearchAnalytics"
	toolInspectURL         = "inspectUrl"
	toolGetIndexCoverage   = "getIndexCoverage"
)

const defaultTopPagesLimit = 100

// Connector implements mcp.Connector for Search Console.
type Connector struct {
	newService func(ctx context.Context, credentials []byte) (*searchconsole.Service, error)
}

func NewConnector() *Connector {
	return &Connector{newService: newSearchConsoleService}
}

func newSearchConsoleService(ctx context.Context, credentials []byte) (*searchconsole.Service, error) {
	return searchconsole.NewService(ctx,
		option.WithCredentialsJSON(credentials),
		option.WithScopes(searchconsole.WebmastersReadonlyScope),
	)
}

// Tools returns the connector's tool catalog with parameter schemas in
// the shape the Responses API expects.
func (c *Connector) Tools() []orchestrator.ToolDefinition {
	return []orchestrator.ToolDefinition{
		{
			Name:        toolFetchProjects,
			Description: "Lists all accessible Search Console properties",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        toolListSitemaps,
			Description: "Lists sitemaps for a property",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"siteUrl": map[string]any{"type": "string"},
				},
				"required": []any{"siteUrl"},
			},
		},
		{
			Name:        toolExportTopPages,
			Description: "Returns top pages with clicks/impressions metrics",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"siteUrl":   map[string]any{"type": "string"},
					"startDate": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"endDate":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"limit":     map[string]any{"type": "integer", "minimum": 1, "maximum": 25000},
				},
				"required": []any{"siteUrl", "startDate", "endDate"},
			},
		},
		{
			Name:        toolGetSearchAnalytics,
			Description: "Runs Search Analytics query with optional filters",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"siteUrl":   map[string]any{"type": "string"},
					"startDate": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"endDate":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"dimensions": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string", "enum": []any{"query", "page", "country", "device", "date"}},
					},
					"filters": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"queryContains": map[string]any{"type": "string"},
							"countries":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"device":        map[string]any{"type": "string", "enum": []any{"DESKTOP", "MOBILE", "TABLET"}},
						},
					},
				},
				"required": []any{"siteUrl", "startDate", "endDate"},
			},
		},
		{
			Name:        toolInspectURL,
			Description: "Inspects a URL indexing state",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"siteUrl":      map[string]any{"type": "string"},
					"url":          map[string]any{"type": "string"},
					"languageCode": map[string]any{"type": "string"},
				},
				"required": []any{"siteUrl", "url"},
			},
		},
		{
			Name:        toolGetIndexCoverage,
			Description: "Inspects multiple URLs and returns non-indexed pages",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"siteUrl":      map[string]any{"type": "string"},
					"urls":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1},
					"languageCode": map[string]any{"type": "string"},
				},
				"required": []any{"siteUrl", "urls"},
			},
		},
	}
}

// IsTool reports whether name is one of the connector's tools.
func (c *Connector) IsTool(name string) bool {
	for _, def := range c.Tools() {
		if def.Name == name {
			return true
		}
	}
	return false
}

// Execute runs one tool call. Input validation failures are a bad
// request; upstream failures keep their HTTP status.
func (c *Connector) Execute(ctx context.Context, tool string, input map[string]any, credentials json.RawMessage) (any, error) {
	creds, err := resolveCredentials(credentials)
	if err != nil {
		return nil, err
	}
	svc, err := c.newService(ctx, creds)
	if err != nil {
		return nil, execError(tool, err)
	}

	switch tool {
	case toolFetchProjects:
		return c.fetchProjects(ctx, svc)
	case toolListSitemaps:
		return c.listSitemaps(ctx, svc, input)
	case toolExportTopPages:
		return c.exportTopPages(ctx, svc, input)
	case toolGetSearchAnalytics:
		return c.getSearchAnalytics(ctx, svc, input)
	case toolInspectURL:
		return c.inspectURL(ctx, svc, input)
	case toolGetIndexCoverage:
		return c.getIndexCoverage(ctx, svc, input)
	default:
		return nil, &mcp.NotImplementedError{Plugin: PluginName, Tool: tool}
	}
}

// resolveCredentials turns the registration's config blob into the
// service-account JSON. The blob may hold the JSON object directly or a
// JSON string containing it; anything unusable falls back to the
// GSC_CREDENTIALS_JSON environment variable.
func resolveCredentials(raw json.RawMessage) ([]byte, error) {
	if creds := credentialsFromConfig(raw); creds != nil {
		return creds, nil
	}
	if env := os.Getenv(credentialsEnv); env != "" {
		if isJSONObject([]byte(env)) {
			return []byte(env), nil
		}
	}
	return nil, &mcp.CredentialsMissingError{Plugin: PluginName}
}

func credentialsFromConfig(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	if isJSONObject(raw) {
		return raw
	}
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil && isJSONObject([]byte(embedded)) {
		return []byte(embedded)
	}
	return nil
}

func isJSONObject(raw []byte) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

func (c *Connector) fetchProjects(ctx context.Context, svc *searchconsole.Service) (any, error) {
	res, err := svc.Sites.List().Context(ctx).Do()
	if err != nil {
		return nil, execError(toolFetchProjects, err)
	}
	if res.SiteEntry == nil {
		return []*searchconsole.WmxSite{}, nil
	}
	return res.SiteEntry, nil
}

type sitemapStatus struct {
	Path             string `json:"path"`
	ProcessingStatus string `json:"processingStatus"`
	LastSubmitted    string `json:"lastSubmitted,omitempty"`
	LastDownloaded   string `json:"lastDownloaded,omitempty"`
	Warnings         int64  `json:"warnings"`
	Errors           int64  `json:"errors"`
}

func (c *Connector) listSitemaps(ctx context.Context, svc *searchconsole.Service, input map[string]any) (any, error) {
	var in listSitemapsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	res, err := svc.Sitemaps.List(in.SiteURL).Context(ctx).Do()
	if err != nil {
		return nil, execError(toolListSitemaps, err)
	}

	sitemaps := make([]sitemapStatus, 0, len(res.Sitemap))
	for _, sm := range res.Sitemap {
		status := "PROCESSED"
		if sm.IsPending {
			status = "PENDING"
		}
		sitemaps = append(sitemaps, sitemapStatus{
			Path:             sm.Path,
			ProcessingStatus: status,
			LastSubmitted:    sm.LastSubmitted,
			LastDownloaded:   sm.LastDownloaded,
			Warnings:         sm.Warnings,
			Errors:           sm.Errors,
		})
	}
	return sitemaps, nil
}

type topPage struct {
	Page        string  `json:"page"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

type topPagesReport struct {
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	RowLimit  int64     `json:"rowLimit"`
	Pages     []topPage `json:"pages"`
}

func (c *Connector) exportTopPages(ctx context.Context, svc *searchconsole.Service, input map[string]any) (any, error) {
	var in exportTopPagesInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	rowLimit := int64(defaultTopPagesLimit)
	if in.Limit != nil {
		rowLimit = *in.Limit
	}

	res, err := svc.Searchanalytics.Query(in.SiteURL, &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Dimensions: []string{"page"},
		RowLimit:   rowLimit,
	}).Context(ctx).Do()
	if err != nil {
		return nil, execError(toolExportTopPages, err)
	}

	pages := make([]topPage, 0, len(res.Rows))
	for _, row := range res.Rows {
		page := topPage{
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.Ctr,
			Position:    row.Position,
		}
		if len(row.Keys) > 0 {
			page.Page = row.Keys[0]
		}
		pages = append(pages, page)
	}

	return &topPagesReport{
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		RowLimit:  rowLimit,
		Pages:     pages,
	}, nil
}

func (c *Connector) getSearchAnalytics(ctx context.Context, svc *searchconsole.Service, input map[string]any) (any, error) {
	var in searchAnalyticsInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	dimensions := in.Dimensions
	if len(dimensions) == 0 {
		dimensions = defaultDimensions
	}

	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Dimensions: dimensions,
	}

	var filters []*searchconsole.ApiDimensionFilter
	if in.Filters != nil {
		if in.Filters.QueryContains != "" {
			filters = append(filters, &searchconsole.ApiDimensionFilter{
				Dimension:  "query",
				Operator:   "contains",
				Expression: in.Filters.QueryContains,
			})
		}
		if expr := countryRegex(in.Filters.Countries); expr != "" {
			filters = append(filters, &searchconsole.ApiDimensionFilter{
				Dimension:  "country",
				Operator:   "includingRegex",
				Expression: expr,
			})
		}
		if in.Filters.Device != "" {
			filters = append(filters, &searchconsole.ApiDimensionFilter{
				Dimension:  "device",
				Operator:   "equals",
				Expression: in.Filters.Device,
			})
		}
	}
	if len(filters) > 0 {
		req.DimensionFilterGroups = []*searchconsole.ApiDimensionFilterGroup{
			{GroupType: "and", Filters: filters},
		}
	}

	res, err := svc.Searchanalytics.Query(in.SiteURL, req).Context(ctx).Do()
	if err != nil {
		return nil, execError(toolGetSearchAnalytics, err)
	}
	return res, nil
}

type urlVerdict struct {
	URL     string `json:"url"`
	Indexed bool   `json:"indexed"`
	Reason  string `json:"reason"`
	Verdict string `json:"verdict"`
}

func (c *Connector) inspectURL(ctx context.Context, svc *searchconsole.Service, input map[string]any) (any, error) {
	var in inspectURLInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	verdict, err := c.inspectOne(ctx, svc, in.SiteURL, in.URL, in.LanguageCode)
	if err != nil {
		return nil, execError(toolInspectURL, err)
	}
	return verdict, nil
}

type indexCoverageReport struct {
	TotalChecked    int          `json:"totalChecked"`
	NonIndexedCount int          `json:"nonIndexedCount"`
	NonIndexedPages []urlVerdict `json:"nonIndexedPages"`
}

func (c *Connector) getIndexCoverage(ctx context.Context, svc *searchconsole.Service, input map[string]any) (any, error) {
	var in indexCoverageInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	nonIndexed := []urlVerdict{}
	for _, u := range in.URLs {
		verdict, err := c.inspectOne(ctx, svc, in.SiteURL, u, in.LanguageCode)
		if err != nil {
			return nil, execError(toolGetIndexCoverage, err)
		}
		if !verdict.Indexed {
			nonIndexed = append(nonIndexed, verdict)
		}
	}

	return &indexCoverageReport{
		TotalChecked:    len(in.URLs),
		NonIndexedCount: len(nonIndexed),
		NonIndexedPages: nonIndexed,
	}, nil
}

func (c *Connector) inspectOne(ctx context.Context, svc *searchconsole.Service, siteURL, url, languageCode string) (urlVerdict, error) {
	res, err := svc.UrlInspection.Index.Inspect(&searchconsole.InspectUrlIndexRequest{
		InspectionUrl: url,
		SiteUrl:       siteURL,
		LanguageCode:  languageCode,
	}).Context(ctx).Do()
	if err != nil {
		return urlVerdict{}, err
	}

	verdict := "UNKNOWN"
	var coverageState, indexingState string
	if res.InspectionResult != nil && res.InspectionResult.IndexStatusResult != nil {
		status := res.InspectionResult.IndexStatusResult
		if status.Verdict != "" {
			verdict = status.Verdict
		}
		coverageState = status.CoverageState
		indexingState = status.IndexingState
	}

	reason := coverageState
	if reason == "" {
		reason = indexingState
	}
	if reason == "" {
		reason = verdict
	}

	return urlVerdict{
		URL:     url,
		Indexed: verdict == "PASS",
		Reason:  reason,
		Verdict: verdict,
	}, nil
}

func execError(tool string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &mcp.ExecutionError{Tool: tool, StatusCode: gerr.Code, Cause: err}
	}
	return &mcp.ExecutionError{Tool: tool, Cause: err}
}
