package engine

import (
	"context"
	"iter"
	"strings"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/postprocess"
)

// StreamMode selects what a streaming call yields.
type StreamMode string

const (
	// Snapshots yields the full processed text on every update.
	Snapshots StreamMode = "snapshots"
	// Deltas yields only the text added since the previous update.
	Deltas StreamMode = "deltas"
)

// Valid reports whether m is a known mode.
func (m StreamMode) Valid() bool { return m == Snapshots || m == Deltas }

// Feed starts a producer of "full text so far" snapshots. Both channels
// must be closed when the producer stops, and the producer must stop when
// ctx is cancelled.
type Feed func(ctx context.Context) (<-chan string, <-chan error)

// Transform turns a snapshot feed into a lazy chunk sequence. Each snapshot
// is post-processed with spec; in Snapshots mode every processed snapshot is
// yielded, in Deltas mode only the suffix beyond the previous processed
// snapshot (or the whole snapshot when it does not extend the previous one).
//
// The feed is started when iteration begins. Stopping iteration, or
// cancelling ctx, cancels the producer and ends the sequence without an
// error. A producer failure is classified and yielded as the last element.
func Transform(ctx context.Context, start Feed, spec postprocess.Spec, mode StreamMode) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)

		snapshots, errCh := start(ctx)
		defer func() {
			cancel()
			for range snapshots {
			}
			for range errCh {
			}
		}()

		var last string
		for raw := range snapshots {
			if ctx.Err() != nil {
				return
			}

			current := postprocess.Apply(raw, spec)

			chunk, emit := current, true
			if mode == Deltas && strings.HasPrefix(current, last) {
				chunk = current[len(last):]
				emit = chunk != ""
			}

			last = current

			if emit && !yield(chunk, nil) {
				return
			}
		}

		if err := <-errCh; err != nil && ctx.Err() == nil {
			yield("", core.Classify(err))
		}
	}
}
