package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "postbench/"+Version, UserAgent())
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, AppName, info["name"])
	assert.Equal(t, Version, info["version"])
	assert.Contains(t, info, "git_commit")
}
