package articles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullContext = EditorialContext{
	Background:   "The city has run a deficit for three years.",
	WhyItMatters: "Property taxes fund schools.",
	WhatToWatch:  "The state audit due in March.",
}

func TestHasCompleteContext(t *testing.T) {
	var nilTLDR *TLDR
	assert.False(t, nilTLDR.HasCompleteContext())
	assert.False(t, (&TLDR{Summary: "x"}).HasCompleteContext())

	partial := fullContext
	partial.WhatToWatch = "  "
	assert.False(t, (&TLDR{Context: &partial}).HasCompleteContext())

	c := fullContext
	assert.True(t, (&TLDR{Context: &c}).HasCompleteContext())
}

func TestWithContext_PreservesSiblingsAndUnknownKeys(t *testing.T) {
	raw := `{"summary":"Short","key_points":["a","b"],"reading_time":4,"editorial_context":{"background":"old"}}`

	var original TLDR
	require.NoError(t, json.Unmarshal([]byte(raw), &original))
	require.NotNil(t, original.Context)
	assert.Equal(t, "old", original.Context.Background)

	merged := original.WithContext(fullContext)
	assert.Equal(t, "Short", merged.Summary)
	assert.Equal(t, []string{"a", "b"}, merged.KeyPoints)
	assert.True(t, merged.HasCompleteContext())

	// original untouched
	assert.Equal(t, "old", original.Context.Background)
	merged.KeyPoints[0] = "changed"
	assert.Equal(t, "a", original.KeyPoints[0])

	out, err := json.Marshal(merged)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"summary":"Short",
		"key_points":["changed","b"],
		"reading_time":4,
		"editorial_context":{
			"background":"The city has run a deficit for three years.",
			"why_it_matters":"Property taxes fund schools.",
			"what_to_watch":"The state audit due in March."
		}
	}`, string(out))
}

func TestWithContext_NilReceiver(t *testing.T) {
	var t0 *TLDR
	merged := t0.WithContext(fullContext)
	require.NotNil(t, merged)
	assert.True(t, merged.HasCompleteContext())
	assert.Empty(t, merged.Summary)
}

func TestDecodeTLDR(t *testing.T) {
	got, err := decodeTLDR(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = decodeTLDR([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = decodeTLDR([]byte(`{"summary":"s","editorial_context":null}`))
	require.NoError(t, err)
	assert.Equal(t, "s", got.Summary)
	assert.Nil(t, got.Context)

	_, err = decodeTLDR([]byte(`["not","an","object"]`))
	assert.Error(t, err)
}
