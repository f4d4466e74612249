package jellyfin

// Item represents a library item as returned by /Items/{id} and the
// /Shows/{seriesId}/Episodes and /Shows/{seriesId}/Seasons endpoints.
// Only the fields the tracker and resolver consume are mapped.
type Item struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	Type              string        `json:"Type"` // Movie, Episode, Series, Season
	SeriesID          string        `json:"SeriesId,omitempty"`
	SeasonID          string        `json:"SeasonId,omitempty"`
	SeriesName        string        `json:"SeriesName,omitempty"`
	ParentIndexNumber *int          `json:"ParentIndexNumber,omitempty"` // season number on episodes
	IndexNumber       *int          `json:"IndexNumber,omitempty"`       // episode number within the season
	ProductionYear    int           `json:"ProductionYear,omitempty"`
	RunTimeTicks      int64         `json:"RunTimeTicks,omitempty"`
	CanDownload       *bool         `json:"CanDownload,omitempty"`
	MediaSources      []MediaSource `json:"MediaSources,omitempty"`
	UserData          *UserData     `json:"UserData,omitempty"`
}

// IsEpisode reports whether the item is a series episode
func (i *Item) IsEpisode() bool {
	return i.Type == "Episode"
}

// UserData contains per-user playback state for an item
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	PlayCount             int   `json:"PlayCount"`
	Played                bool  `json:"Played"`
}

// MediaSource represents one playable source file of an item
type MediaSource struct {
	ID           string        `json:"Id"`
	Container    string        `json:"Container,omitempty"`
	MediaStreams []MediaStream `json:"MediaStreams,omitempty"`
}

// MediaStream represents a video, audio, or subtitle stream
type MediaStream struct {
	Index    int    `json:"Index"`
	Type     string `json:"Type"` // Video, Audio, Subtitle
	Codec    string `json:"Codec,omitempty"`
	Language string `json:"Language,omitempty"`
}

// PlaybackInfoResponse is the response of /Items/{id}/PlaybackInfo
type PlaybackInfoResponse struct {
	PlaySessionID string        `json:"PlaySessionId"`
	MediaSources  []MediaSource `json:"MediaSources"`
}

// ItemsPage is the envelope returned by list endpoints
type ItemsPage struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}
