package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/config"
)

type fakeModel struct {
	reply string
	err   error
	got   []*schema.Message
	opts  *model.Options
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = in
	f.opts = model.GetCommonOptions(nil, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		require.Equal(t, want, CleanJSON(in))
	}
}

func TestCompleteJSON(t *testing.T) {
	fm := &fakeModel{reply: "```json\n{\"is_relevant\": true, \"relevance_score\": 9}\n```"}
	c := NewWithModel(fm, config.AIConfig{FastModel: "fast"}, 0)

	type reply struct {
		IsRelevant bool    `json:"is_relevant"`
		Score      float64 `json:"relevance_score"`
	}
	got, err := CompleteJSON[reply](context.Background(), c, Request{
		System:      "sys",
		Prompt:      "hello",
		Model:       "fast",
		Temperature: 0.3,
		MaxTokens:   200,
	})
	require.NoError(t, err)
	require.True(t, got.IsRelevant)
	require.Equal(t, 9.0, got.Score)

	require.Len(t, fm.got, 2)
	require.Equal(t, schema.System, fm.got[0].Role)
	require.Equal(t, "hello", fm.got[1].Content)
	require.NotNil(t, fm.opts.Temperature)
	require.InDelta(t, 0.3, *fm.opts.Temperature, 1e-6)
	require.Equal(t, 200, *fm.opts.MaxTokens)
	require.Equal(t, "fast", *fm.opts.Model)
}

func TestCompleteJSON_BadReply(t *testing.T) {
	c := NewWithModel(&fakeModel{reply: "not json"}, config.AIConfig{}, 0)
	_, err := CompleteJSON[map[string]any](context.Background(), c, Request{Prompt: "x"})
	require.Error(t, err)
}

func TestComplete_Errors(t *testing.T) {
	c := NewWithModel(nil, config.AIConfig{}, 0)
	require.False(t, c.Enabled())
	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.True(t, errors.Is(err, ErrDisabled))

	c = NewWithModel(&fakeModel{err: errors.New("429 Too Many Requests")}, config.AIConfig{}, 0)
	_, err = c.Complete(context.Background(), Request{Prompt: "x"})
	require.ErrorContains(t, err, "429")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abcdef", 3))
	require.Equal(t, "ab", Truncate("ab", 3))
	// "é" is two bytes; cutting inside it backs off to the rune start.
	require.Equal(t, "a", Truncate("aé", 2))
}
