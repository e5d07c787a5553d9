package contracts

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gradecli/pkg/contracts/domain"
)

func TestVersionStrings(t *testing.T) {
	assert.Equal(t, "gradecli "+Version, GetVersionString())

	full := GetFullVersionString()
	assert.True(t, strings.HasPrefix(full, GetVersionString()+" (built: "))
	assert.Contains(t, full, runtime.GOOS+"/"+runtime.GOARCH)

	info := GetVersionInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, domain.ArchiveSchemaVersion, info.ArchiveFormat)
}
