package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.2.3", Version{Major: 1, Minor: 2, Patch: 3}.String())
	assert.Equal(t, "2.0.0-beta.1", Version{Major: 2, Prerelease: "beta.1"}.String())
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Version
		expected int
	}{
		{"equal", Version{1, 2, 3, ""}, Version{1, 2, 3, ""}, 0},
		{"major wins", Version{2, 0, 0, ""}, Version{1, 9, 9, ""}, 1},
		{"minor wins", Version{1, 3, 0, ""}, Version{1, 2, 9, ""}, 1},
		{"patch wins", Version{1, 2, 4, ""}, Version{1, 2, 3, ""}, 1},
		{"release beats prerelease", Version{1, 0, 0, ""}, Version{1, 0, 0, "rc.1"}, 1},
		{"prerelease ordering", Version{1, 0, 0, "alpha"}, Version{1, 0, 0, "beta"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.expected, tt.b.Compare(tt.a))
		})
	}
}

func TestParse(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)

	v, err = Parse("2.0.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, "rc.1", v.Prerelease)

	for _, bad := range []string{"", "1.2", "v1.2.3", "1.2.x", "1.2.3_beta"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestNewInfo(t *testing.T) {
	info := NewInfo("1.0.0", "abc1234", "2026-01-02T15:04:05Z")
	assert.Equal(t, "1.0.0", info.Build)
	assert.Equal(t, "abc1234", info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}
