package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const maxFeedMessage = 1 << 20

// ErrFeedReset means the server no longer buffers the events missed since
// the requested event ID. Re-read the change log with ChangeSets.List and
// subscribe again.
var ErrFeedReset = errors.New("changelog: feed reset")

// FeedOptions narrows a feed subscription.
type FeedOptions struct {
	// Types limits events to change sets touching one of these object types.
	Types []string
	// LastEventID replays buffered events after this ID before live ones.
	LastEventID uint64
}

// FeedEvent announces one committed change set.
type FeedEvent struct {
	ID        uint64           `json:"id"`
	Time      time.Time        `json:"time"`
	ChangeSet ChangeSetSummary `json:"change_set"`
}

// ChangeSetSummary names the objects and properties a change set touched.
// Objects is empty and Truncated set when the summary was too large to send.
type ChangeSetSummary struct {
	ID        uuid.UUID       `json:"id"`
	Sequence  int64           `json:"sequence"`
	Author    string          `json:"author"`
	Timestamp time.Time       `json:"timestamp"`
	Objects   []ObjectSummary `json:"objects,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

// ObjectSummary is one changed object in a ChangeSetSummary.
type ObjectSummary struct {
	Type       string   `json:"type"`
	Ref        string   `json:"ref"`
	Properties []string `json:"properties"`
}

// Feed is a live subscription to committed change sets. It is not safe for
// concurrent use.
type Feed struct {
	conn *websocket.Conn
	last uint64
}

type feedMessage struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id"`
	Data   json.RawMessage `json:"data"`
	Time   time.Time       `json:"time"`
	Reason string          `json:"reason"`
}

type subscribeMessage struct {
	Type        string   `json:"type"`
	LastEventID uint64   `json:"last_event_id"`
	Types       []string `json:"types,omitempty"`
}

// Subscribe opens the change set feed. ctx bounds the handshake only; pass
// the read context to Next.
func (c *Client) Subscribe(ctx context.Context, opts *FeedOptions) (*Feed, error) {
	conn, resp, err := websocket.Dial(ctx, c.baseURL+"/api/v1/feed", &websocket.DialOptions{
		HTTPHeader: c.header(),
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, readAPIError(resp)
		}

		return nil, fmt.Errorf("dialing feed: %w", err)
	}
	conn.SetReadLimit(maxFeedMessage)

	f := &Feed{conn: conn}
	if opts != nil && (len(opts.Types) > 0 || opts.LastEventID > 0) {
		f.last = opts.LastEventID

		msg := subscribeMessage{Type: "subscribe", LastEventID: opts.LastEventID, Types: opts.Types}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			conn.Close(websocket.StatusInternalError, "subscribe failed") //nolint:errcheck
			return nil, fmt.Errorf("subscribing: %w", err)
		}
	}

	return f, nil
}

// Next blocks until the next change set event. It returns ErrFeedReset when
// events were missed, and a websocket.CloseError when the server closes the
// connection.
func (f *Feed) Next(ctx context.Context) (FeedEvent, error) {
	for {
		var msg feedMessage
		if err := wsjson.Read(ctx, f.conn, &msg); err != nil {
			return FeedEvent{}, err
		}

		switch msg.Type {
		case "reset":
			return FeedEvent{}, fmt.Errorf("%w: %s", ErrFeedReset, msg.Reason)
		case "changeset.recorded":
			ev := FeedEvent{ID: msg.ID, Time: msg.Time}
			if err := json.Unmarshal(msg.Data, &ev.ChangeSet); err != nil {
				return FeedEvent{}, fmt.Errorf("decoding event %d: %w", msg.ID, err)
			}
			f.last = msg.ID

			return ev, nil
		}
	}
}

// LastEventID is the ID of the last event returned by Next, for resuming
// with FeedOptions.LastEventID.
func (f *Feed) LastEventID() uint64 { return f.last }

// Close ends the subscription.
func (f *Feed) Close() error {
	return f.conn.Close(websocket.StatusNormalClosure, "")
}
