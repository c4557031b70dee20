package loader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aergo-project/aergo-core/internal/loader"
)

// Opening a real *.so and exercising symbol resolution requires an actual
// compiled Go plug-in, which this suite cannot build (no toolchain
// invocation). What's left to unit-test at this layer is the one path
// that doesn't need one: a missing/unreadable file must surface as an
// error from plugin.Open, not a panic.
func TestLoader_Load_MissingFile(t *testing.T) {
	l := loader.New()
	require.NotNil(t, l)

	_, err := l.Load("/nonexistent/path/to/module.so")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "module.so")
}

func TestNew_ReturnsIndependentLoaders(t *testing.T) {
	a := loader.New()
	b := loader.New()
	assert.NotNil(t, a)
	assert.NotNil(t, b)
}
