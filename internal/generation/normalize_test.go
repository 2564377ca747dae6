package generation

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	t.Parallel()

	t.Run("object surrounded by commentary", func(t *testing.T) {
		t.Parallel()

		var out map[string]int
		err := ExtractObject(`Sure! Here is the result: {"a":1} Thanks`, &out)

		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 1}, out)
	})

	t.Run("bare object", func(t *testing.T) {
		t.Parallel()

		var out struct {
			Summary string `json:"summary"`
		}
		err := ExtractObject(`{"summary":"ok"}`, &out)

		require.NoError(t, err)
		assert.Equal(t, "ok", out.Summary)
	})

	t.Run("markdown fenced object", func(t *testing.T) {
		t.Parallel()

		var out map[string]string
		err := ExtractObject("```json\n{\"central_idea\":\"TCP\"}\n```", &out)

		require.NoError(t, err)
		assert.Equal(t, "TCP", out["central_idea"])
	})

	t.Run("skips malformed candidate before valid record", func(t *testing.T) {
		t.Parallel()

		var out map[string]int
		err := ExtractObject(`{oops} then {"b":2}`, &out)

		require.NoError(t, err)
		assert.Equal(t, map[string]int{"b": 2}, out)
	})

	t.Run("nested object decodes as one value", func(t *testing.T) {
		t.Parallel()

		var out struct {
			Branches []struct {
				Title string `json:"title"`
			} `json:"branches"`
		}
		err := ExtractObject(`prefix {"branches":[{"title":"x"},{"title":"y"}]} suffix`, &out)

		require.NoError(t, err)
		require.Len(t, out.Branches, 2)
		assert.Equal(t, "y", out.Branches[1].Title)
	})

	t.Run("no record yields sentinel error", func(t *testing.T) {
		t.Parallel()

		var out map[string]int
		err := ExtractObject("I could not produce JSON for that, sorry.", &out)

		assert.ErrorIs(t, err, ErrNoRecordFound)
	})
}

func TestExtractArray(t *testing.T) {
	t.Parallel()

	t.Run("array with commentary", func(t *testing.T) {
		t.Parallel()

		var out []struct {
			Front string `json:"front"`
			Back  string `json:"back"`
		}
		err := ExtractArray(`Here are your cards: [{"front":"Q","back":"A"}] enjoy!`, &out)

		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "Q", out[0].Front)
	})

	t.Run("empty array is valid", func(t *testing.T) {
		t.Parallel()

		var out []map[string]string
		err := ExtractArray(`[]`, &out)

		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("object text has no array", func(t *testing.T) {
		t.Parallel()

		var out []map[string]string
		err := ExtractArray(`{"front":"Q"}`, &out)

		assert.ErrorIs(t, err, ErrNoRecordFound)
	})
}

func TestTruncateSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", TruncateSummary("abc", 500))
	assert.Equal(t, "abcde", TruncateSummary("abcdefgh", 5))
	assert.Equal(t, "abc", TruncateSummary("abc", 0))

	// The cut backs off to a rune boundary instead of splitting one.
	assert.Equal(t, "h", TruncateSummary("héllo", 2))
	clipped := TruncateSummary("日本語のテキスト", 7)
	assert.True(t, utf8.ValidString(clipped))
	assert.Equal(t, "日本", clipped)
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	total := TokenUsage{}
	for _, u := range []TokenUsage{
		{InputTokens: 10, OutputTokens: 20},
		{InputTokens: 5, OutputTokens: 5},
		{InputTokens: 0, OutputTokens: 0},
		{InputTokens: 15, OutputTokens: 10},
	} {
		total = total.Add(u)
	}

	assert.Equal(t, TokenUsage{InputTokens: 30, OutputTokens: 35}, total)
}
