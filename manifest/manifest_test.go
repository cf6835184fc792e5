package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	var options Options
	options.Set("boost:without_test", "True")
	options.Set("xerces-c:shared", "False")
	options.Set("boost:without_test", "False")

	assert.Equal(t, []string{"boost:without_test", "xerces-c:shared"}, options.Keys())
	value, ok := options.Bool("boost:without_test")
	assert.True(t, ok)
	assert.False(t, value)
	_, ok = options.Bool("missing")
	assert.False(t, ok)

	merged := options.Merge(Options{{Key: "xerces-c:shared", Value: "True"}, {Key: "boost:layout", Value: "system"}})
	assert.Equal(t, Options{
		{Key: "boost:without_test", Value: "False"},
		{Key: "xerces-c:shared", Value: "True"},
		{Key: "boost:layout", Value: "system"},
	}, merged)
	// Merge does not touch the receiver.
	shared, _ := options.Get("xerces-c:shared")
	assert.Equal(t, "False", shared)

	assert.Equal(t, Options{{Key: "without_test", Value: "False"}, {Key: "layout", Value: "system"}}, merged.ForPackage("boost"))
}

func TestOptionsMarshalJSONKeepsOrder(t *testing.T) {
	options := Options{{Key: "z:last", Value: "1"}, {Key: "a:first", Value: "True"}}
	content, err := json.Marshal(options)
	require.NoError(t, err)
	assert.Equal(t, `{"z:last":"1","a:first":"True"}`, string(content))
}

func TestSplitOptionKey(t *testing.T) {
	tests := []struct {
		key            string
		expectedPkg    string
		expectedOption string
		expectedOk     bool
	}{
		{"boost:without_test", "boost", "without_test", true},
		{"boost/*:shared", "boost", "shared", true},
		{"*:shared", "*", "shared", true},
		{"shared", "", "shared", false},
		{":shared", "", ":shared", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			pkg, option, ok := SplitOptionKey(tt.key)
			assert.Equal(t, tt.expectedPkg, pkg)
			assert.Equal(t, tt.expectedOption, option)
			assert.Equal(t, tt.expectedOk, ok)
		})
	}
}

func TestFormatOptionValue(t *testing.T) {
	assert.Equal(t, "True", FormatOptionValue(true))
	assert.Equal(t, "False", FormatOptionValue(false))
	assert.Equal(t, "None", FormatOptionValue(nil))
	assert.Equal(t, "3", FormatOptionValue(int64(3)))
	assert.Equal(t, "0.5", FormatOptionValue(0.5))
	assert.Equal(t, "multi", FormatOptionValue("multi"))
}
