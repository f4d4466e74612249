package jellyfin

import (
	"context"
	"fmt"
	"net/url"
)

// playbackStartBody is the body of POST /Sessions/Playing
type playbackStartBody struct {
	ItemID        string `json:"ItemId"`
	MediaSourceID string `json:"MediaSourceId"`
	PlaySessionID string `json:"PlaySessionId"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod"`
	PositionTicks int64  `json:"PositionTicks"`
}

// playbackProgressBody is the body of POST /Sessions/Playing/Progress
type playbackProgressBody struct {
	ItemID        string `json:"ItemId"`
	MediaSourceID string `json:"MediaSourceId"`
	PlaySessionID string `json:"PlaySessionId"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused"`
}

// playbackStoppedBody is the body of POST /Sessions/Playing/Stopped
type playbackStoppedBody struct {
	ItemID        string `json:"ItemId"`
	MediaSourceID string `json:"MediaSourceId"`
	PlaySessionID string `json:"PlaySessionId"`
	PositionTicks int64  `json:"PositionTicks"`
}

// ReportStart reports the beginning of a playback session
func (c *Client) ReportStart(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string) error {
	body := playbackStartBody{
		ItemID:        itemID,
		MediaSourceID: mediaSourceID,
		PlaySessionID: playSessionID,
		CanSeek:       true,
		PlayMethod:    "DirectPlay",
		PositionTicks: 0,
	}
	return c.post(ctx, server, token, "/Sessions/Playing", body)
}

// ReportProgress reports the current playback position and pause state
func (c *Client) ReportProgress(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string, positionTicks int64, paused bool) error {
	body := playbackProgressBody{
		ItemID:        itemID,
		MediaSourceID: mediaSourceID,
		PlaySessionID: playSessionID,
		CanSeek:       true,
		PlayMethod:    "DirectPlay",
		PositionTicks: positionTicks,
		IsPaused:      paused,
	}
	return c.post(ctx, server, token, "/Sessions/Playing/Progress", body)
}

// ReportStopped reports the end of a playback session
func (c *Client) ReportStopped(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string, positionTicks int64) error {
	body := playbackStoppedBody{
		ItemID:        itemID,
		MediaSourceID: mediaSourceID,
		PlaySessionID: playSessionID,
		PositionTicks: positionTicks,
	}
	return c.post(ctx, server, token, "/Sessions/Playing/Stopped", body)
}

// MarkPlayed marks an item as fully watched for the current user
func (c *Client) MarkPlayed(ctx context.Context, server, token, itemID string) error {
	path := fmt.Sprintf("/UserPlayedItems/%s", url.PathEscape(itemID))
	return c.post(ctx, server, token, path, nil)
}
