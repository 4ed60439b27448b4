package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileNameRoundTrip(t *testing.T) {
	for _, userID := range []string{"u1", "user/with/slashes", "spaces and %", "ünïcode"} {
		name := FileName(userID)
		assert.NotContains(t, name, "/")

		got, ok := UserIDFromFileName(name)
		assert.True(t, ok)
		assert.Equal(t, userID, got)
	}
}

func TestUserIDFromFileName_Rejects(t *testing.T) {
	for _, name := range []string{"u1.txt", ".json", "a/b.json", "%zz.json"} {
		_, ok := UserIDFromFileName(name)
		assert.False(t, ok, name)
	}
}
