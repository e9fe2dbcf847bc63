package xtream

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jamesnetherton/m3u"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
)

// PlaylistEntry is one channel from an M3U playlist, flattened from
// the tag soup the format carries.
type PlaylistEntry struct {
	Name  string `json:"name"`
	Logo  string `json:"logo,omitempty"`
	Group string `json:"group,omitempty"`
	URL   string `json:"url"`
}

// FetchPlaylist downloads and parses the M3U playlist at playlistURL.
// This serves credentials whose provider hands out a playlist link
// instead of (or alongside) an Xtream panel.
func FetchPlaylist(playlistURL string) ([]PlaylistEntry, error) {
	u, err := url.Parse(strings.TrimSpace(playlistURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperrors.InvalidInput("playlistUrl", "must be an http(s) URL")
	}

	playlist, err := m3u.Parse(u.String())
	if err != nil {
		return nil, apperrors.External("playlist", fmt.Errorf("parse m3u: %w", err))
	}

	entries := make([]PlaylistEntry, 0, len(playlist.Tracks))
	for _, track := range playlist.Tracks {
		entry := PlaylistEntry{
			Name: track.Name,
			URL:  track.URI,
		}
		for _, tag := range track.Tags {
			switch tag.Name {
			case "tvg-logo":
				entry.Logo = tag.Value
			case "group-title":
				entry.Group = tag.Value
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
