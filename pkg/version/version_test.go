package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_ContainsBuildFields(t *testing.T) {
	s := String()
	assert.Contains(t, s, "reelvibe")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, runtime.Version())
}

func TestGetInfo_JSON(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Version, decoded["version"])
	assert.Equal(t, runtime.GOOS, decoded["os"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
}

func TestApplyVCS(t *testing.T) {
	tests := []struct {
		name       string
		commit     string
		settings   []debug.BuildSetting
		wantCommit string
		wantDate   string
		wantMod    bool
	}{
		{
			name:   "fills unknown fields",
			commit: "unknown",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "0123456789ab",
			wantDate:   "2026-01-02T03:04:05Z",
			wantMod:    true,
		},
		{
			name:       "ldflags win",
			commit:     "abc1234",
			settings:   []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffff"}},
			wantCommit: "abc1234",
			wantDate:   "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := BuildInfo{Commit: tt.commit, Date: "unknown"}
			applyVCS(&info, tt.settings)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantDate, info.Date)
			assert.Equal(t, tt.wantMod, info.Modified)
		})
	}
}
