package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref      string
		expected Reference
	}{
		{ref: "boost/1.73.0", expected: Reference{Name: "boost", Version: "1.73.0"}},
		{ref: "zlib/1.2.13@myuser/stable", expected: Reference{Name: "zlib", Version: "1.2.13", User: "myuser", Channel: "stable"}},
		{ref: "zlib/1.2.13#abc123def456", expected: Reference{Name: "zlib", Version: "1.2.13", Revision: "abc123def456"}},
		{ref: "boost/1.80.0@company/release#revision123:packageid456", expected: Reference{Name: "boost", Version: "1.80.0", User: "company", Channel: "release", Revision: "revision123"}},
		{ref: "sqlite3/[>=3.30 <4]", expected: Reference{Name: "sqlite3", Version: "[>=3.30 <4]"}},
		{ref: " xerces-c/3.2.3 ", expected: Reference{Name: "xerces-c", Version: "3.2.3"}},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			ref, err := ParseReference(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
		})
	}
}

func TestParseReferenceErrors(t *testing.T) {
	for _, ref := range []string{"single-name", "/1.0", "boost/", "boost/[>=1.0", "boost/[]", "boost/1.0 extra", "boost/1.73.0@", "boost/1.73.0@/stable", "boost/1.73.0@user/", "boost/1.73.0@#rev"} {
		t.Run(ref, func(t *testing.T) {
			_, err := ParseReference(ref)
			assert.Error(t, err)
		})
	}
}

func TestReferenceString(t *testing.T) {
	for _, ref := range []string{"boost/1.73.0", "zlib/1.2.13@myuser/stable", "zlib/1.2.13@myuser/stable#rev", "zlib/1.2.13@myuser", "sqlite3/[>=3.30 <4]"} {
		assert.Equal(t, ref, MustParseReference(ref).String())
	}
	assert.Equal(t, "boost:1.73.0", MustParseReference("boost/1.73.0").Key())
}

func TestReferenceConstraint(t *testing.T) {
	ref := MustParseReference("sqlite3/[>=3.30 <4, include_prerelease]")
	assert.True(t, ref.IsRange())
	constraint, err := ref.Constraint()
	require.NoError(t, err)
	assert.NotNil(t, constraint)

	_, err = MustParseReference("boost/1.73.0").Constraint()
	assert.Error(t, err)
	_, err = MustParseReference("boost/[not a range]").Constraint()
	assert.Error(t, err)
}

func TestReferenceJSON(t *testing.T) {
	content, err := json.Marshal([]Reference{MustParseReference("boost/1.73.0")})
	require.NoError(t, err)
	assert.JSONEq(t, `["boost/1.73.0"]`, string(content))

	var refs []Reference
	require.NoError(t, json.Unmarshal([]byte(`["xerces-c/3.2.3@apache/stable"]`), &refs))
	assert.Equal(t, []Reference{{Name: "xerces-c", Version: "3.2.3", User: "apache", Channel: "stable"}}, refs)
	assert.Error(t, json.Unmarshal([]byte(`["xerces-c"]`), &refs))
}
