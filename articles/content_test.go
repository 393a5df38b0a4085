package articles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_UnmarshalVariants(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		var c Content
		require.NoError(t, json.Unmarshal([]byte(`"  Body text.  "`), &c))
		assert.False(t, c.IsBlocks())
		assert.Equal(t, "Body text.", c.Text())
	})

	t.Run("null", func(t *testing.T) {
		var c Content
		require.NoError(t, json.Unmarshal([]byte(`null`), &c))
		assert.Equal(t, "", c.Text())
	})

	t.Run("object is rejected", func(t *testing.T) {
		var c Content
		assert.Error(t, json.Unmarshal([]byte(`{"text":"x"}`), &c))
	})

	t.Run("misshapen known blocks contribute no text", func(t *testing.T) {
		raw := `[{"type":"list","content":"not a list"},{"type":"paragraph","content":[{"text":"x"}]},{"type":"quote","content":"Kept."}]`
		var c Content
		require.NoError(t, json.Unmarshal([]byte(raw), &c))
		assert.Equal(t, "Kept.", c.Text())

		out, err := json.Marshal(c)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	})
}

func TestContent_BlockText(t *testing.T) {
	raw := `[
		{"type":"heading","content":"Budget vote"},
		{"type":"paragraph","content":"The council met on Tuesday."},
		{"type":"embed","content":{"url":"https://example.com/video"}},
		{"type":"list","content":["Taxes unchanged"," ","Parks funded"]},
		{"type":"quote","content":"We kept our promise."},
		{"type":"html","content":"<p>Read <b>more</b>\n  <a href=\"/x\">here</a></p><script>track()</script>"},
		{"type":"paragraph","content":""}
	]`

	var c Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.True(t, c.IsBlocks())
	assert.Len(t, c.Blocks(), 7)

	want := "Budget vote\n\n" +
		"The council met on Tuesday.\n\n" +
		"- Taxes unchanged\n- Parks funded\n\n" +
		"We kept our promise.\n\n" +
		"Read more here"
	assert.Equal(t, want, c.Text())
}

func TestContent_UnknownBlockRoundTrip(t *testing.T) {
	raw := `[{"type":"embed","content":{"url":"https://example.com"}},{"type":"list","content":["a"]}]`

	var c Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestContent_Scan(t *testing.T) {
	var c Content
	require.NoError(t, c.Scan(`[{"type":"paragraph","content":"hello"}]`))
	assert.Equal(t, "hello", c.Text())

	require.NoError(t, c.Scan([]byte(`"quoted"`)))
	assert.Equal(t, "quoted", c.Text())

	// legacy rows that hold bare text
	require.NoError(t, c.Scan("Just words, not JSON"))
	assert.Equal(t, "Just words, not JSON", c.Text())

	// numeric legacy bodies
	require.NoError(t, c.Scan([]byte("2024")))
	assert.False(t, c.IsBlocks())
	assert.Equal(t, "2024", c.Text())

	require.NoError(t, c.Scan(nil))
	assert.Equal(t, "", c.Text())

	assert.Error(t, c.Scan(`{"type":"doc","content":[]}`))

	assert.Error(t, c.Scan(42))
}

func TestHTMLText_Empty(t *testing.T) {
	assert.Equal(t, "", htmlText("   "))
	assert.Equal(t, "", Block{Type: BlockHTML}.PlainText())
}
