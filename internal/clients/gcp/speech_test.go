package gcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type fakeRecognizer struct {
	errs  []error
	resp  *speechpb.LongRunningRecognizeResponse
	reqs  []*speechpb.LongRunningRecognizeRequest
	calls int
}

func (f *fakeRecognizer) LongRunningRecognize(_ context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	f.reqs = append(f.reqs, req)
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.resp, nil
}

func (f *fakeRecognizer) Close() error { return nil }

type fakeStager struct {
	staged  map[string][]byte
	removed []string
}

func (f *fakeStager) Stage(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if f.staged == nil {
		f.staged = map[string][]byte{}
	}
	b, _ := io.ReadAll(r)
	f.staged[key] = b
	return GCSURI("bucket", key), nil
}

func (f *fakeStager) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeStager) Close() error { return nil }

func result(texts ...string) *speechpb.LongRunningRecognizeResponse {
	out := &speechpb.LongRunningRecognizeResponse{}
	for _, t := range texts {
		out.Results = append(out.Results, &speechpb.SpeechRecognitionResult{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: t}},
		})
	}
	return out
}

func TestTranscribeInlineJoinsResults(t *testing.T) {
	rec := &fakeRecognizer{resp: result(" hello  world", "", "second part")}
	s := newSpeech(logger.NewNop(), rec, SpeechConfig{}, nil)

	text, err := s.Transcribe(context.Background(), "talk.wav", "audio/wav", []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "hello world second part", text)

	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "en-US", rec.reqs[0].Config.LanguageCode)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, rec.reqs[0].Config.Encoding)
	assert.NotNil(t, rec.reqs[0].Audio.GetContent())
}

func TestTranscribeRetriesUnavailable(t *testing.T) {
	rec := &fakeRecognizer{
		errs: []error{status.Error(codes.Unavailable, "try later")},
		resp: result("ok"),
	}
	s := newSpeech(logger.NewNop(), rec, SpeechConfig{MaxRetries: 1}, nil)

	text, err := s.Transcribe(context.Background(), "a.mp3", "audio/mpeg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, rec.calls)
}

func TestTranscribeDoesNotRetryInvalidArgument(t *testing.T) {
	rec := &fakeRecognizer{errs: []error{status.Error(codes.InvalidArgument, "bad audio")}}
	s := newSpeech(logger.NewNop(), rec, SpeechConfig{}, nil)

	_, err := s.Transcribe(context.Background(), "a.mp3", "audio/mpeg", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestTranscribeLargeAudioIsStaged(t *testing.T) {
	rec := &fakeRecognizer{resp: result("long talk")}
	stager := &fakeStager{}
	s := newSpeech(logger.NewNop(), rec, SpeechConfig{}, stager)

	audio := bytes.Repeat([]byte{1}, maxInlineAudioBytes+1)
	text, err := s.Transcribe(context.Background(), "talk.MP3", "audio/mpeg", audio)
	require.NoError(t, err)
	assert.Equal(t, "long talk", text)

	require.Len(t, stager.staged, 1)
	require.Len(t, stager.removed, 1)
	uri := rec.reqs[0].Audio.GetUri()
	assert.True(t, strings.HasPrefix(uri, "gs://bucket/audio/"))
	assert.True(t, strings.HasSuffix(uri, ".mp3"))
}

func TestTranscribeLargeAudioWithoutStager(t *testing.T) {
	s := newSpeech(logger.NewNop(), &fakeRecognizer{}, SpeechConfig{}, nil)
	_, err := s.Transcribe(context.Background(), "a.wav", "audio/wav", make([]byte, maxInlineAudioBytes+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging bucket")
}

func TestInferSpeechEncoding(t *testing.T) {
	assert.Equal(t, speechpb.RecognitionConfig_MP3, inferSpeechEncoding("audio/mpeg", ""))
	assert.Equal(t, speechpb.RecognitionConfig_FLAC, inferSpeechEncoding("", "x.flac"))
	assert.Equal(t, speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, inferSpeechEncoding("video/mp4", "x.mp4"))
}
