package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasVersionArg(t *testing.T) {
	assert.True(t, HasVersionArg([]string{"goskip", "--version"}))
	assert.True(t, HasVersionArg([]string{"goskip", "-v"}))
	assert.False(t, HasVersionArg([]string{"goskip", "-debug"}))
	assert.False(t, HasVersionArg([]string{"goskip"}))
}

func TestShowVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowVersion(&buf)
	assert.Contains(t, buf.String(), "goskip v"+Version)
	assert.Contains(t, buf.String(), "bolt")
}
