package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersionFile(t *testing.T) {
	values := parseVersionFile(strings.NewReader(`
# generated by release script
version: 1.4.0
Build: 2026-10-01T10:00:00Z
commit:abc1234
garbage line
`))
	assert.Equal(t, "1.4.0", values["version"])
	assert.Equal(t, "2026-10-01T10:00:00Z", values["build"])
	assert.Equal(t, "abc1234", values["commit"])
	assert.Len(t, values, 3)
}

func TestApplyVersionFile_KeepsLdflagsValues(t *testing.T) {
	origVersion, origBuild, origCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = origVersion, origBuild, origCommit })

	Version, Build, GitCommit = "2.0.0", "unknown", "unknown"
	applyVersionFile(map[string]string{"version": "1.0.0", "build": "b1", "commit": "c1"})

	assert.Equal(t, BuildInfo{Version: "2.0.0", Build: "b1", Commit: "c1"}, CurrentBuild())
	assert.Equal(t, "2.0.0 (build: b1, commit: c1)", CurrentBuild().String())
}
