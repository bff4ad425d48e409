package client

import (
	"context"
	"net/url"
	"strconv"
)

// HistoryService reads the change history of individual objects.
type HistoryService struct {
	c *Client
}

func objectPath(typeName, ref string) string {
	return "/api/v1/objects/" + url.PathEscape(typeName) + "/" + url.PathEscape(ref)
}

func pageParams(opts *HistoryOptions) url.Values {
	params := url.Values{}
	if opts != nil {
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	return params
}

// Object returns the changes to one object, most recent first.
func (s *HistoryService) Object(ctx context.Context, typeName, ref string, opts *HistoryOptions) ([]ObjectHistoryEntry, bool, error) {
	var resp struct {
		Changes []ObjectHistoryEntry `json:"changes"`
		HasMore bool                 `json:"has_more"`
	}
	if err := s.c.get(ctx, objectPath(typeName, ref)+"/changes", pageParams(opts), &resp); err != nil {
		return nil, false, err
	}
	return resp.Changes, resp.HasMore, nil
}

// Property returns the changes to one property, most recent first.
func (s *HistoryService) Property(ctx context.Context, typeName, ref, property string, opts *HistoryOptions) ([]PropertyHistoryEntry, bool, error) {
	var resp struct {
		Changes []PropertyHistoryEntry `json:"changes"`
		HasMore bool                   `json:"has_more"`
	}
	path := objectPath(typeName, ref) + "/properties/" + url.PathEscape(property)
	if err := s.c.get(ctx, path, pageParams(opts), &resp); err != nil {
		return nil, false, err
	}
	return resp.Changes, resp.HasMore, nil
}
