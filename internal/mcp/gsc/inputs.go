package gsc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/siteagent/siteagent/internal/mcp"
)

var allowedDimensions = map[string]struct{}{
	"query":   {},
	"page":    {},
	"country": {},
	"device":  {},
	"date":    {},
}

var allowedDevices = map[string]struct{}{
	"DESKTOP": {},
	"MOBILE":  {},
	"TABLET":  {},
}

var defaultDimensions = []string{"page", "country", "device", "date"}

type listSitemapsInput struct {
	SiteURL string `json:"siteUrl"`
}

type exportTopPagesInput struct {
	SiteURL   string `json:"siteUrl"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Limit     *int64 `json:"limit"`
}

type searchAnalyticsFilters struct {
	QueryContains string   `json:"queryContains"`
	Countries     []string `json:"countries"`
	Device        string   `json:"device"`
}

type searchAnalyticsInput struct {
	SiteURL    string                  `json:"siteUrl"`
	StartDate  string                  `json:"startDate"`
	EndDate    string                  `json:"endDate"`
	Dimensions []string                `json:"dimensions"`
	Filters    *searchAnalyticsFilters `json:"filters"`
}

type inspectURLInput struct {
	SiteURL      string `json:"siteUrl"`
	URL          string `json:"url"`
	LanguageCode string `json:"languageCode"`
}

type indexCoverageInput struct {
	SiteURL      string   `json:"siteUrl"`
	URLs         []string `json:"urls"`
	LanguageCode string   `json:"languageCode"`
}

// decodeInput maps loosely-typed tool arguments onto a typed input
// struct. Unknown keys are ignored; type mismatches are a bad request.
func decodeInput(input map[string]any, dst any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return &mcp.BadRequestError{Message: "invalid tool input: " + err.Error()}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &mcp.BadRequestError{Message: "invalid tool input: " + err.Error()}
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &mcp.BadRequestError{Message: fmt.Sprintf("%s is required", name)}
	}
	return nil
}

func (in *listSitemapsInput) validate() error {
	return requireField("siteUrl", in.SiteURL)
}

func (in *exportTopPagesInput) validate() error {
	for _, f := range []struct{ name, value string }{
		{"siteUrl", in.SiteURL},
		{"startDate", in.StartDate},
		{"endDate", in.EndDate},
	} {
		if err := requireField(f.name, f.value); err != nil {
			return err
		}
	}
	if in.Limit != nil && (*in.Limit < 1 || *in.Limit > 25000) {
		return &mcp.BadRequestError{Message: "limit must be between 1 and 25000"}
	}
	return nil
}

func (in *searchAnalyticsInput) validate() error {
	for _, f := range []struct{ name, value string }{
		{"siteUrl", in.SiteURL},
		{"startDate", in.StartDate},
		{"endDate", in.EndDate},
	} {
		if err := requireField(f.name, f.value); err != nil {
			return err
		}
	}
	for _, d := range in.Dimensions {
		if _, ok := allowedDimensions[d]; !ok {
			return &mcp.BadRequestError{Message: fmt.Sprintf("unknown dimension %q", d)}
		}
	}
	if in.Filters != nil && in.Filters.Device != "" {
		if _, ok := allowedDevices[in.Filters.Device]; !ok {
			return &mcp.BadRequestError{Message: fmt.Sprintf("unknown device %q", in.Filters.Device)}
		}
	}
	return nil
}

func (in *inspectURLInput) validate() error {
	if err := requireField("siteUrl", in.SiteURL); err != nil {
		return err
	}
	return requireField("url", in.URL)
}

func (in *indexCoverageInput) validate() error {
	if err := requireField("siteUrl", in.SiteURL); err != nil {
		return err
	}
	if len(in.URLs) == 0 {
		return &mcp.BadRequestError{Message: "urls must not be empty"}
	}
	for _, u := range in.URLs {
		if strings.TrimSpace(u) == "" {
			return &mcp.BadRequestError{Message: "urls must not contain blank entries"}
		}
	}
	return nil
}

var regexMeta = regexp.MustCompile(`[.*+?^${}()|[\]\\]`)

// countryRegex builds the anchored alternation used to filter the
// country dimension; blank entries are dropped and regex metacharacters
// escaped. Empty result means no usable countries were supplied.
func countryRegex(countries []string) string {
	var escaped []string
	for _, c := range countries {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		escaped = append(escaped, regexMeta.ReplaceAllString(c, `\$0`))
	}
	if len(escaped) == 0 {
		return ""
	}
	return "^(" + strings.Join(escaped, "|") + ")$"
}
