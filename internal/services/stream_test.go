package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyStreamFinalizesOnce(t *testing.T) {
	var finals atomic.Int32
	var gotReply string
	var gotErr error
	produce := func(ctx context.Context, emit func(string) error) (string, error) {
		for _, f := range []string{"a", "b"} {
			if err := emit(f); err != nil {
				return "", err
			}
		}
		return "ab", errors.New("upstream closed")
	}
	finalize := func(ctx context.Context, reply string, err error) {
		finals.Add(1)
		gotReply, gotErr = reply, err
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		assert.NoError(t, ctx.Err())
	}

	s := startReplyStream(context.Background(), time.Second, produce, finalize)
	assert.Equal(t, []string{"a", "b"}, drain(s))
	reply, err := s.Wait()
	require.Error(t, err)
	assert.Equal(t, "ab", reply)

	_, _ = s.Wait()
	assert.Equal(t, int32(1), finals.Load())
	assert.Equal(t, "ab", gotReply)
	assert.EqualError(t, gotErr, "upstream closed")
}

func TestReplyStreamFinalizerOutlivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var finalErr error
	produce := func(ctx context.Context, emit func(string) error) (string, error) {
		_ = emit("x")
		<-ctx.Done()
		return "x", ctx.Err()
	}
	finalize := func(fctx context.Context, reply string, err error) {
		finalErr = fctx.Err()
	}

	s := startReplyStream(ctx, time.Second, produce, finalize)
	<-s.Fragments()
	cancel()
	drain(s)
	_, err := s.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, finalErr)
}

func TestCompletedReplyStreamReplays(t *testing.T) {
	want := errors.New("boom")
	s := CompletedReplyStream([]string{"a", "b"}, want)

	var got []string
	for f := range s.Fragments() {
		got = append(got, f)
	}
	reply, err := s.Wait()
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "ab", reply)
	assert.ErrorIs(t, err, want)
}
