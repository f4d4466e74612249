package autoplay

import (
	"context"
	"fmt"
	"sort"

	"github.com/justchokingaround/nextup/internal/jellyfin"
)

// Source is the subset of the Jellyfin client the resolver consumes
type Source interface {
	Episodes(ctx context.Context, server, token, seriesID, seasonID string) ([]jellyfin.Item, error)
	Seasons(ctx context.Context, server, token, seriesID string) ([]jellyfin.Item, error)
	StreamURL(server, token, itemID string) string
}

// ResolvedEpisode is the next episode to play, as produced by the resolver
type ResolvedEpisode struct {
	ID            string
	Name          string
	IndexNumber   int
	DurationTicks int64
	PlayURL       string

	// SeasonNumber is set only when the episode belongs to a different
	// season than the query, so callers can render a correct SxxExx label
	SeasonNumber *int
}

// Resolver finds the next playable episode after a given one, crossing a
// season boundary when the current season is exhausted.
type Resolver struct {
	source Source
}

// NewResolver creates an episode resolver
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// ResolveNext returns the episode following currentIndex in the given season,
// or the first episode of the next season when the season is exhausted.
// (nil, nil) means end of series, a legitimate terminal outcome.
//
// The within-season case costs a single fetch; only a season rollover pays
// for the season list and the next season's episode list.
func (r *Resolver) ResolveNext(ctx context.Context, server, token, seriesID, seasonID string, currentIndex int) (*ResolvedEpisode, error) {
	episodes, err := r.source.Episodes(ctx, server, token, seriesID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes of season %s: %w", seasonID, err)
	}

	playable := playableEpisodes(episodes)
	for i := range playable {
		if *playable[i].IndexNumber == currentIndex+1 {
			return r.resolved(server, token, &playable[i], nil), nil
		}
	}

	// Season exhausted, look for a following season
	seasons, err := r.source.Seasons(ctx, server, token, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seasons of series %s: %w", seriesID, err)
	}

	indexed := seasons[:0:0]
	for _, s := range seasons {
		if s.IndexNumber != nil {
			indexed = append(indexed, s)
		}
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		return *indexed[i].IndexNumber < *indexed[j].IndexNumber
	})

	currentPos := -1
	for i := range indexed {
		if indexed[i].ID == seasonID {
			currentPos = i
			break
		}
	}
	if currentPos < 0 || currentPos >= len(indexed)-1 {
		// Last season or current season unknown: end of series
		return nil, nil
	}

	nextSeason := indexed[currentPos+1]
	nextEpisodes, err := r.source.Episodes(ctx, server, token, seriesID, nextSeason.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes of season %s: %w", nextSeason.ID, err)
	}

	nextPlayable := playableEpisodes(nextEpisodes)
	if len(nextPlayable) == 0 {
		return nil, nil
	}

	return r.resolved(server, token, &nextPlayable[0], nextSeason.IndexNumber), nil
}

// resolved builds a ResolvedEpisode from an episode item
func (r *Resolver) resolved(server, token string, ep *jellyfin.Item, seasonNumber *int) *ResolvedEpisode {
	return &ResolvedEpisode{
		ID:            ep.ID,
		Name:          ep.Name,
		IndexNumber:   *ep.IndexNumber,
		DurationTicks: ep.RunTimeTicks,
		PlayURL:       r.source.StreamURL(server, token, ep.ID),
		SeasonNumber:  seasonNumber,
	}
}

// playableEpisodes keeps episodes that have at least one media source, are
// not explicitly marked non-downloadable, and carry an index number, sorted
// ascending by index.
func playableEpisodes(episodes []jellyfin.Item) []jellyfin.Item {
	playable := episodes[:0:0]
	for _, ep := range episodes {
		if ep.IndexNumber == nil {
			continue
		}
		if len(ep.MediaSources) == 0 {
			continue
		}
		if ep.CanDownload != nil && !*ep.CanDownload {
			continue
		}
		playable = append(playable, ep)
	}
	sort.SliceStable(playable, func(i, j int) bool {
		return *playable[i].IndexNumber < *playable[j].IndexNumber
	})
	return playable
}
