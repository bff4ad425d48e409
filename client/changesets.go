package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ChangeSetService handles change set operations.
type ChangeSetService struct {
	c *Client
}

type changeSetListResponse struct {
	Data    []ChangeSet `json:"data"`
	HasMore bool        `json:"has_more"`
}

// List returns change sets, most recent first.
func (s *ChangeSetService) List(ctx context.Context, opts *ChangeSetQueryOptions) ([]ChangeSet, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Author != "" {
			params.Set("author", opts.Author)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp changeSetListResponse
	if err := s.c.get(ctx, "/api/v1/changesets", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// Get returns one change set with its object and property changes.
func (s *ChangeSetService) Get(ctx context.Context, id uuid.UUID) (*ChangeSet, error) {
	var cs ChangeSet
	if err := s.c.get(ctx, "/api/v1/changesets/"+id.String(), nil, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// Record submits deltas that were already saved elsewhere for logging.
func (s *ChangeSetService) Record(ctx context.Context, req *RecordRequest) (*RecordResult, error) {
	var result RecordResult
	if err := s.c.post(ctx, "/api/v1/changesets", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
