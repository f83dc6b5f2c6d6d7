package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

const timedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="2.0">Hello &amp;amp; welcome</text>
<text start="12.0" dur="3.0">to the show</text>
<text start="31.0" dur="4.0">second   window</text>
<text start="95.0" dur="5.0">much later</text>
</transcript>`

func newServer(t *testing.T, tracksJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc12345678", r.URL.Query().Get("v"))
		fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":%s,"audioTracks":[]}}};</script></html>`, tracksJSON)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") != "en" {
			http.Error(w, "wrong track", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(timedText))
	})
	return httptest.NewServer(mux)
}

func TestFetchGroupsIntoWindows(t *testing.T) {
	srv := newServer(t, `[
		{"baseUrl":"/api/timedtext?v=abc12345678&lang=de","languageCode":"de","kind":""},
		{"baseUrl":"/api/timedtext?v=abc12345678&lang=en","languageCode":"en","kind":""}
	]`)
	defer srv.Close()

	c := NewClient(logger.NewNop(), Config{BaseURL: srv.URL})
	segs, err := c.Fetch(context.Background(), "abc12345678")
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, "Hello & welcome to the show", segs[0].Text)
	assert.Equal(t, time.Duration(0), segs[0].Start)
	assert.Equal(t, 15*time.Second, segs[0].Duration)

	assert.Equal(t, "second window", segs[1].Text)
	assert.Equal(t, 30*time.Second, segs[1].Start)

	assert.Equal(t, "much later", segs[2].Text)
	assert.Equal(t, 90*time.Second, segs[2].Start)
}

func TestFetchWithoutCaptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>no captions here</html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(logger.NewNop(), Config{BaseURL: srv.URL})
	_, err := c.Fetch(context.Background(), "abc12345678")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTranscript))
}

func TestPickTrackPrefersManualCaptions(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "a", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "b", LanguageCode: "en-GB"},
		{BaseURL: "c", LanguageCode: "fr"},
	}
	got, ok := pickTrack(tracks, []string{"en"})
	require.True(t, ok)
	assert.Equal(t, "b", got.BaseURL)

	got, ok = pickTrack(tracks[:1], []string{"en"})
	require.True(t, ok)
	assert.Equal(t, "a", got.BaseURL)

	got, ok = pickTrack(tracks[2:], []string{"en"})
	require.True(t, ok)
	assert.Equal(t, "c", got.BaseURL)

	_, ok = pickTrack(nil, []string{"en"})
	assert.False(t, ok)
}

func TestBalancedArrayHandlesBracketsInStrings(t *testing.T) {
	arr, ok := balancedArray(` [{"name":"a]b","x":[1,2]}], "rest": 1`)
	require.True(t, ok)
	assert.Equal(t, `[{"name":"a]b","x":[1,2]}]`, arr)

	_, ok = balancedArray(`{"not":"array"}`)
	assert.False(t, ok)
}
