// Package docservice talks to an Unstructured-style document understanding API.
package docservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

// ErrUnavailable marks every failure of the service. It is recoverable: callers
// fall back to a local extractor.
var ErrUnavailable = errors.New("document service unavailable")

const apiKeyHeader = "unstructured-api-key"

// SupportedFormats are the extensions worth sending to the service. Plain formats
// are cheaper to extract locally.
var SupportedFormats = []string{
	"pdf", "docx", "doc", "pptx", "ppt", "xlsx", "xls", "odt", "rtf",
	"epub", "html", "htm", "eml", "msg",
}

// narrative element types; everything else except Table is dropped
var textTypes = map[string]bool{
	"Title":             true,
	"NarrativeText":     true,
	"ListItem":          true,
	"Text":              true,
	"UncategorizedText": true,
	"Address":           true,
	"EmailAddress":      true,
	"FigureCaption":     true,
	"Formula":           true,
	"CodeSnippet":       true,
}

const tableType = "Table"

// Element is one typed element of the service response.
type Element struct {
	Type      string   `json:"type"`
	ElementID string   `json:"element_id"`
	Text      string   `json:"text"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	PageNumber int    `json:"page_number"`
	Filename   string `json:"filename"`
}

type Client struct {
	http      *resty.Client
	endpoint  string
	splitter  *textsplitter.Splitter
	supported map[string]bool
}

// New builds a client posting to endpoint. Every call is bounded by timeout.
func New(endpoint string, timeout time.Duration, splitter *textsplitter.Splitter) *Client {
	supported := make(map[string]bool, len(SupportedFormats))
	for _, ext := range SupportedFormats {
		supported[ext] = true
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		endpoint:  endpoint,
		splitter:  splitter,
		supported: supported,
	}
}

func (c *Client) Supports(ext string) bool {
	return c.supported[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Extract submits raw to the service and chunks the reading-order text it returns.
func (c *Client) Extract(ctx context.Context, raw []byte, formatHint, apiKey string) ([]textsplitter.Chunk, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no api key configured", ErrUnavailable)
	}
	name := "upload"
	if formatHint != "" {
		name += "." + strings.TrimPrefix(formatHint, ".")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, apiKey).
		SetFileReader("files", name, bytes.NewReader(raw)).
		SetFormData(map[string]string{"strategy": "auto"}).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode(), truncate(resp.Body(), 256))
	}

	var elements []Element
	if err := json.Unmarshal(resp.Body(), &elements); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	text := BuildText(elements)
	if text == "" {
		return nil, fmt.Errorf("%w: no text elements in response", ErrUnavailable)
	}
	return c.splitter.Split(text), nil
}

// BuildText orders elements by page (response order breaks ties), joins the
// narrative elements and appends each table as a "Table: " block.
func BuildText(elements []Element) string {
	ordered := make([]Element, len(elements))
	copy(ordered, elements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Metadata.PageNumber < ordered[j].Metadata.PageNumber
	})

	var narrative, tables []string
	for _, el := range ordered {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}
		switch {
		case el.Type == tableType:
			tables = append(tables, "Table: "+text)
		case textTypes[el.Type]:
			narrative = append(narrative, text)
		}
	}
	return strings.Join(append(narrative, tables...), "\n\n")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
