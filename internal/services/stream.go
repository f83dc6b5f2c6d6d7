package services

import (
	"context"
	"strings"
	"time"
)

// ReplyStream carries a streamed reply. Fragments is closed when the model
// stops; Wait then returns the full text produced and the stream error.
// Persistence runs exactly once, after the last fragment.
type ReplyStream struct {
	fragments chan string
	done      chan struct{}
	reply     string
	err       error
}

func (r *ReplyStream) Fragments() <-chan string { return r.fragments }

// Wait blocks until the stream is finalized.
func (r *ReplyStream) Wait() (string, error) {
	<-r.done
	return r.reply, r.err
}

type produceFunc func(ctx context.Context, emit func(string) error) (string, error)

type finalizeFunc func(ctx context.Context, reply string, err error)

func startReplyStream(ctx context.Context, finalizeTimeout time.Duration, produce produceFunc, finalize finalizeFunc) *ReplyStream {
	r := &ReplyStream{
		fragments: make(chan string, 16),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(r.done)

		emit := func(fragment string) error {
			select {
			case r.fragments <- fragment:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		reply, err := produce(ctx, emit)
		close(r.fragments)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		r.reply, r.err = reply, err

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		finalize(fctx, reply, err)
	}()
	return r
}

// CompletedReplyStream returns a stream that replays fragments and then
// reports err. Nothing is persisted.
func CompletedReplyStream(fragments []string, err error) *ReplyStream {
	r := &ReplyStream{
		fragments: make(chan string, len(fragments)),
		done:      make(chan struct{}),
		err:       err,
	}
	var b strings.Builder
	for _, f := range fragments {
		r.fragments <- f
		b.WriteString(f)
	}
	close(r.fragments)
	r.reply = b.String()
	close(r.done)
	return r
}
