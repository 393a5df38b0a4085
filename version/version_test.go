package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_Strings(t *testing.T) {
	dev := Info{CommitHash: "3f9c2a1b7e", BuildTime: "2026-10-01", Version: "dev"}
	assert.Equal(t, "3f9c2a1", dev.Short())
	assert.Equal(t, "newsdesk/dev-3f9c2a1", dev.UserAgent())
	assert.Equal(t, "newsdesk dev (commit 3f9c2a1b7e, built 2026-10-01)", dev.String())

	tagged := Info{CommitHash: "abc", Version: "1.2.0"}
	assert.Equal(t, "abc", tagged.Short())
	assert.Equal(t, "newsdesk/1.2.0", tagged.UserAgent())
}

func TestGet_ReportsRuntime(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
