package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	b, o, err := ParsePath("gs://evid/evidence/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "evid", b)
	assert.Equal(t, "evidence/a.jpg", o)

	for _, bad := range []string{"", "evid/a.jpg", "gs://evid", "gs:///a.jpg", "gs://evid/"} {
		_, _, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "a.pdf", (&Store{}).objectName("a.pdf"))
	assert.Equal(t, "evidence/a.pdf", (&Store{prefix: "evidence"}).objectName("a.pdf"))
}
