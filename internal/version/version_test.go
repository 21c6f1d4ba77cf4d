package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stubBuild(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func stamp(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })
}

func TestStampedVersion(t *testing.T) {
	stamp(t, "v1.2.0", "abcdef1234567", "2024-05-01T10:00:00Z")
	stubBuild(t, nil)

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "v1.2.0 (abcdef1)", GetShortVersion())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Contains(t, GetDetailedVersion(), "Commit: abcdef1234567")
	assert.Contains(t, GetDetailedVersion(), "Built: 2024-05-01T10:00:00Z")
}

func TestVersionFromBuildInfo(t *testing.T) {
	stamp(t, "dev", "unknown", "unknown")
	stubBuild(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abc"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "0123456789abc", GetGitCommit())
	assert.Equal(t, "dev-0123456", GetShortVersion())
	assert.True(t, strings.Contains(GetDetailedVersion(), "Modified: true"))
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
}

func TestNoBuildInfo(t *testing.T) {
	stamp(t, "", "", "garbage")
	stubBuild(t, nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "dev", GetShortVersion())
	assert.NotContains(t, GetDetailedVersion(), "Commit:")
}
