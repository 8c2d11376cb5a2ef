package engine

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/hupe1980/promptline/core"
	"github.com/hupe1980/promptline/internal/testutil"
	"github.com/hupe1980/promptline/postprocess"
	"github.com/hupe1980/promptline/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var chunks []string
	for c, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func feedOf(err error, snapshots ...string) Feed {
	return func(ctx context.Context) (<-chan string, <-chan error) {
		return testutil.Feed(ctx, err, snapshots...)
	}
}

func TestTransform_Snapshots(t *testing.T) {
	spec := postprocess.Spec{Trim: true}
	chunks, err := collect(Transform(context.Background(), feedOf(nil, " He", " Hel", " Hel", " Hello "), spec, Snapshots))
	require.NoError(t, err)

	// unchanged snapshots are still emitted
	assert.Equal(t, []string{"He", "Hel", "Hel", "Hello"}, chunks)
}

func TestTransform_DeltasConcatenateToFinalSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		spec      postprocess.Spec
		snapshots []string
	}{
		{"plain", postprocess.Spec{}, []string{"The", "The game", "The game was", "The game was drawn."}},
		{"with repeats", postprocess.Spec{}, []string{"a", "a", "ab", "ab", "abc"}},
		{"collapse", postprocess.Spec{CollapseWhitespace: true}, []string{"Recent", "Recent form:", "Recent form: WWD"}},
		{"rounded", postprocess.Spec{RoundDecimals: postprocess.Places(0)}, []string{"Rating ", "Rating 1719", "Rating 1719 vs 1600.49"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots, err := collect(Transform(context.Background(), feedOf(nil, tt.snapshots...), tt.spec, Snapshots))
			require.NoError(t, err)

			deltas, err := collect(Transform(context.Background(), feedOf(nil, tt.snapshots...), tt.spec, Deltas))
			require.NoError(t, err)

			require.NotEmpty(t, snapshots)
			assert.Equal(t, snapshots[len(snapshots)-1], strings.Join(deltas, ""))
			for _, d := range deltas {
				assert.NotEmpty(t, d)
			}
		})
	}
}

func TestTransform_DeltasSkipEmptySuffix(t *testing.T) {
	chunks, err := collect(Transform(context.Background(), feedOf(nil, "a", "a", "ab"), postprocess.Spec{}, Deltas))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestTransform_CorrectiveReEmit(t *testing.T) {
	// "1.2" is stable at one place until the next digit rounds it up
	spec := postprocess.Spec{RoundDecimals: postprocess.Places(1)}

	chunks, err := collect(Transform(context.Background(), feedOf(nil, "x 1.2", "x 1.25", "x 1.25 ok"), spec, Deltas))
	require.NoError(t, err)
	assert.Equal(t, []string{"x 1.2", "x 1.3", " ok"}, chunks)
}

func TestTransform_ClassifiesFailures(t *testing.T) {
	t.Run("generic", func(t *testing.T) {
		errBoom := errors.New("boom")
		chunks, err := collect(Transform(context.Background(), feedOf(errBoom, "a"), postprocess.Spec{}, Snapshots))

		assert.Equal(t, []string{"a"}, chunks)
		var genErr *core.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("tool", func(t *testing.T) {
		toolErr := tool.NewToolError("X", "lookup failed", tool.CodeExecution)
		_, err := collect(Transform(context.Background(), feedOf(toolErr), postprocess.Spec{}, Deltas))

		var callErr *core.ToolCallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, "X", callErr.ToolName)
		assert.ErrorIs(t, err, core.ErrToolCallFailed)
	})

	t.Run("taxonomy passes through", func(t *testing.T) {
		unavailable := &core.ModelUnavailableError{Model: "m", Detail: "offline"}
		_, err := collect(Transform(context.Background(), feedOf(unavailable), postprocess.Spec{}, Deltas))
		assert.Same(t, unavailable, err)
	})
}

func TestTransform_ConsumerBreak(t *testing.T) {
	var producerCtx context.Context
	start := func(ctx context.Context) (<-chan string, <-chan error) {
		producerCtx = ctx
		return testutil.Feed(ctx, errors.New("never surfaced"), "a", "ab", "abc", "abcd")
	}

	var got []string
	for chunk, err := range Transform(context.Background(), start, postprocess.Spec{}, Deltas) {
		require.NoError(t, err)
		got = append(got, chunk)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a", "b"}, got)
	require.NotNil(t, producerCtx)
	assert.ErrorIs(t, producerCtx.Err(), context.Canceled)
}

func TestTransform_ContextCancelEndsWithoutError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	for chunk, err := range Transform(ctx, feedOf(nil, "a", "ab", "abc"), postprocess.Spec{}, Snapshots) {
		require.NoError(t, err)
		got = append(got, chunk)
		cancel()
	}

	assert.Equal(t, []string{"a"}, got)
}

func TestTransform_Lazy(t *testing.T) {
	started := false
	seq := Transform(context.Background(), func(ctx context.Context) (<-chan string, <-chan error) {
		started = true
		return testutil.Feed(ctx, nil)
	}, postprocess.Spec{}, Snapshots)

	assert.False(t, started)

	chunks, err := collect(seq)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.True(t, started)
}

func TestStreamMode_Valid(t *testing.T) {
	assert.True(t, Snapshots.Valid())
	assert.True(t, Deltas.Valid())
	assert.False(t, StreamMode("tokens").Valid())
}
