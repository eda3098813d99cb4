// Package webex is the Webex chat transport: it posts to one room and reads
// messages that mention the bot.
package webex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"richard/internal/httpx"
)

// DefaultAPIURL is the public Webex API root.
const DefaultAPIURL = "https://webexapis.com/v1"

// Message is one room message as returned by the messages listing.
type Message struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Created string `json:"created"`
}

type messageList struct {
	Items []Message `json:"items"`
}

type postMessage struct {
	RoomID   string `json:"roomId"`
	ParentID string `json:"parentId,omitempty"`
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

// Client talks to the Webex REST API on behalf of one room.
// Its methods are safe for concurrent use except Unread.
type Client struct {
	http   *http.Client
	base   string
	room   string
	header http.Header

	// mark is the creation date of the newest message seen; "" before the first listing.
	mark string
}

func NewClient(hc *http.Client, baseURL, token, room string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		http:   hc,
		base:   strings.TrimRight(baseURL, "/"),
		room:   room,
		header: http.Header{"Authorization": {"Bearer " + token}},
	}
}

// Check fetches the room meeting info to validate token and room.
func (c *Client) Check(ctx context.Context) error {
	return httpx.DoJSON(ctx, c.http, http.MethodGet, c.base+"/rooms/"+url.PathEscape(c.room)+"/meetingInfo", c.header, nil, nil)
}

// Say posts a markdown message to the room.
func (c *Client) Say(ctx context.Context, markdown string) error {
	return c.post(ctx, postMessage{RoomID: c.room, Markdown: markdown})
}

// Respond posts a plain text reply in the thread of parent.
func (c *Client) Respond(ctx context.Context, parent, text string) error {
	return c.post(ctx, postMessage{RoomID: c.room, ParentID: parent, Text: text})
}

func (c *Client) post(ctx context.Context, m postMessage) error {
	if err := httpx.DoJSON(ctx, c.http, http.MethodPost, c.base+"/messages", c.header, m, nil); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// Unread returns messages mentioning the bot created after the previous call,
// oldest first. The first listing only records where to start.
func (c *Client) Unread(ctx context.Context) ([]Message, error) {
	q := url.Values{"roomId": {c.room}, "mentionedPeople": {"me"}}
	var list messageList
	if err := httpx.DoJSON(ctx, c.http, http.MethodGet, c.base+"/messages?"+q.Encode(), c.header, nil, &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	items := list.Items
	sort.SliceStable(items, func(i, j int) bool { return items[i].Created < items[j].Created })
	if c.mark != "" {
		fresh := items[:0]
		for _, m := range items {
			if m.Created > c.mark {
				fresh = append(fresh, m)
			}
		}
		items = fresh
	}
	if len(items) == 0 {
		if c.mark == "" {
			c.mark = "0"
		}
		return nil, nil
	}
	first := c.mark == ""
	c.mark = items[len(items)-1].Created
	if first {
		return nil, nil
	}
	return items, nil
}
