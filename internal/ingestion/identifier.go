// Package ingestion turns raw sources into indexed chunks: identifier
// resolution, text splitting, batched embedding and transcription.
package ingestion

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

var youTubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// ResolveYouTubeID returns the video id carried by a YouTube URL. The `v`
// query parameter wins; youtu.be links and /shorts/, /embed/ and /live/
// paths are accepted as well.
func ResolveYouTubeID(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", pkgerrors.ErrInvalidReference)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pkgerrors.ErrInvalidReference, err)
	}
	if v := strings.TrimSpace(u.Query().Get("v")); v != "" {
		return v, nil
	}

	host := strings.ToLower(u.Hostname())
	segs := strings.Split(strings.Trim(path.Clean("/"+u.Path), "/"), "/")
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		if len(segs) >= 1 && segs[0] != "" {
			return segs[0], nil
		}
	case youTubeHosts[host]:
		if len(segs) >= 2 && segs[1] != "" {
			switch segs[0] {
			case "shorts", "embed", "live", "v":
				return segs[1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: no video id in %q", pkgerrors.ErrInvalidReference, raw)
}

// MintAudioID derives a content id for an upload: the filename plus a short
// random hex suffix so repeated uploads of the same name stay distinct.
func MintAudioID(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "audio"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return name + suffix
}
