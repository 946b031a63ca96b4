package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talaria-db/talaria/internal/hashing"
)

func TestValidateAcceptsCorrectSequenceRoot(t *testing.T) {
	m := manifestWithChunks("v1", "a", "b", "c")
	assert.NoError(t, Validate(m))
}

func TestValidateRejectsWrongSequenceRoot(t *testing.T) {
	m := manifestWithChunks("v1", "a", "b")
	m.SequenceRoot = hashing.Sum([]byte("wrong"))
	assert.Error(t, Validate(m))
}

func TestValidateRejectsSelfReferentialPreviousVersion(t *testing.T) {
	m := manifestWithChunks("v1", "a")
	m.PreviousVersion = "v1"
	assert.Error(t, Validate(m))
}
