package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
)

// ImportResult reports the members a story import added.
type ImportResult struct {
	Imported int      `json:"imported"`
	Members  []Member `json:"members"`
}

// Export is a downloaded copy of the family record.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PublishedExport is an export the server stored in object storage.
type PublishedExport struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Members  int    `json:"members"`
}

// StoriesClient provides story import and record export
type StoriesClient struct {
	client *Client
}

// Import sends a free-text family story to the server's language model and
// returns the members it added. A failed parse adds nothing.
func (s *StoriesClient) Import(ctx context.Context, story string) (*ImportResult, error) {
	body := map[string]string{"story": story}
	var out ImportResult
	if err := s.client.do(ctx, http.MethodPost, "/import/story", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads the whole record as json or xlsx.
func (s *StoriesClient) Export(ctx context.Context, format string) (*Export, error) {
	var failure envelope
	resp, err := s.client.rest.R().
		SetContext(ctx).
		SetError(&failure).
		SetQueryParam("format", format).
		SetHeader("Accept", "*/*").
		Get(apiPrefix + "/export")
	if err != nil {
		return nil, fmt.Errorf("kinkeep: export: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp, &failure)
	}

	exp := &Export{
		ContentType: resp.Header().Get("Content-Type"),
		Data:        resp.Body(),
	}
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil {
		exp.Filename = params["filename"]
	}
	return exp, nil
}

// Publish asks the server to store an export in object storage and returns
// a time-limited link to it.
func (s *StoriesClient) Publish(ctx context.Context, format string) (*PublishedExport, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	var out PublishedExport
	if err := s.client.do(ctx, http.MethodPost, "/export", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
