// Package youtube downloads caption transcripts for public videos.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://www.youtube.com"
	// DefaultWindow groups caption cues the way transcripts are chunked for indexing.
	DefaultWindow = 30 * time.Second

	maxPageBytes = 8 << 20
)

// ErrNoTranscript means the video exists but exposes no caption track.
var ErrNoTranscript = errors.New("no transcript available")

// Segment is one transcript window.
type Segment struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

type Config struct {
	BaseURL   string
	Languages []string
	Window    time.Duration
	Timeout   time.Duration
}

type Client struct {
	log       *logger.Logger
	baseURL   string
	languages []string
	window    time.Duration
	http      *http.Client
}

func NewClient(log *logger.Logger, cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		log:       log.With("service", "YouTubeTranscripts"),
		baseURL:   base,
		languages: langs,
		window:    window,
		http:      &http.Client{Timeout: timeout},
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type transcriptXML struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

type cue struct {
	text  string
	start float64
	dur   float64
}

// Fetch returns the transcript of videoID grouped into fixed windows.
func (c *Client) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	ctx = ctxutil.Default(ctx)
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("video id required")
	}

	page, err := c.get(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID), map[string]string{"Accept-Language": "en-US,en;q=0.8"})
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}
	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return nil, err
	}
	track, ok := pickTrack(tracks, c.languages)
	if !ok {
		return nil, ErrNoTranscript
	}
	trackURL := track.BaseURL
	if strings.HasPrefix(trackURL, "/") {
		trackURL = c.baseURL + trackURL
	}

	raw, err := c.get(ctx, trackURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}
	cues, err := parseTimedText(raw)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, ErrNoTranscript
	}
	c.log.Debug("Transcript fetched", "video_id", videoID, "language", track.LanguageCode, "cues", len(cues))
	return groupWindows(cues, c.window), nil
}

func (c *Client) get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube http %d", resp.StatusCode)
	}
	return body, nil
}

// parseCaptionTracks pulls the captionTracks array out of the player
// response embedded in the watch page.
func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	s := string(page)
	const marker = `"captionTracks":`
	i := strings.Index(s, marker)
	if i < 0 {
		if strings.Contains(s, `class="g-recaptcha"`) {
			return nil, fmt.Errorf("youtube is rate limiting transcript requests")
		}
		return nil, ErrNoTranscript
	}
	arr, ok := balancedArray(s[i+len(marker):])
	if !ok {
		return nil, fmt.Errorf("malformed caption track list")
	}
	var tracks []captionTrack
	if err := json.Unmarshal([]byte(arr), &tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	return tracks, nil
}

// balancedArray returns the JSON array at the start of s.
func balancedArray(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "[") {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// pickTrack prefers manual captions in the first matching language, then
// generated ones, then any track.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range tracks {
				if (t.Kind == "asr") != generated {
					continue
				}
				if strings.EqualFold(t.LanguageCode, lang) || strings.HasPrefix(strings.ToLower(t.LanguageCode), strings.ToLower(lang)+"-") {
					return t, true
				}
			}
		}
	}
	return tracks[0], true
}

func parseTimedText(raw []byte) ([]cue, error) {
	var doc transcriptXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode timedtext: %w", err)
	}
	out := make([]cue, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		out = append(out, cue{text: text, start: start, dur: dur})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out, nil
}

// groupWindows merges cues into consecutive windows by start time. Empty
// windows are skipped.
func groupWindows(cues []cue, window time.Duration) []Segment {
	w := window.Seconds()
	var (
		out  []Segment
		cur  []string
		idx  = -1
		last float64
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		start := float64(idx) * w
		out = append(out, Segment{
			Text:     strings.Join(cur, " "),
			Start:    seconds(start),
			Duration: seconds(math.Max(last-start, 0)),
		})
		cur = nil
	}
	for _, c := range cues {
		k := int(math.Floor(c.start / w))
		if k != idx {
			flush()
			idx = k
		}
		cur = append(cur, c.text)
		last = c.start + c.dur
	}
	flush()
	return out
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
