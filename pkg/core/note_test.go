package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_Equal(t *testing.T) {
	base := Fields{Title: "t", Body: "b", Tags: []string{"a", "b"}, Favorited: true}

	assert.True(t, base.Equal(base.Clone()))
	assert.True(t, Fields{}.Equal(Fields{Tags: []string{}}), "nil and empty tags are equal")

	reordered := base.Clone()
	reordered.Tags = []string{"b", "a"}
	assert.False(t, base.Equal(reordered), "tag order matters")

	unfav := base.Clone()
	unfav.Favorited = false
	assert.False(t, base.Equal(unfav))
}

func TestFields_CloneIsolation(t *testing.T) {
	f := Fields{Tags: []string{"x"}}
	c := f.Clone()
	c.Tags[0] = "y"
	assert.Equal(t, "x", f.Tags[0])
}

func TestFields_IsBlank(t *testing.T) {
	assert.True(t, Fields{Title: "  ", Body: "\n"}.IsBlank())
	assert.True(t, Fields{Tags: []string{"tag"}, Favorited: true}.IsBlank())
	assert.False(t, Fields{Body: "Hello"}.IsBlank())
}

func TestDraftKey(t *testing.T) {
	assert.Equal(t, NewNoteKey, DraftKey(""))
	assert.Equal(t, "42", DraftKey("42"))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"2024-05-01T12:30:00Z":             want,
		"2024-05-01T12:30:00":              want,
		"2024-05-01 12:30:00":              want,
		"2024-05-01T14:30:00+02:00":        want,
		"2024-05-01T12:30:00.250000":       want.Add(250 * time.Millisecond),
		"2024-05-01T12:30:00.250000+00:00": want.Add(250 * time.Millisecond),
	}
	for in, expected := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, expected.Equal(got), "%s: got %s", in, got)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
	_, err = ParseTimestamp("")
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	server := &RemoteError{Op: "update", Status: 503, Kind: KindForStatus(503), Err: errors.New("unavailable")}
	client := &RemoteError{Op: "update", Status: 422, Kind: KindForStatus(422), Err: errors.New("title too long")}

	assert.Equal(t, KindServer, KindOf(fmt.Errorf("wrapped: %w", server)))
	assert.True(t, IsRetryable(server))
	assert.Equal(t, KindClient, KindOf(client))
	assert.False(t, IsRetryable(client))
	assert.Equal(t, KindTransport, KindOf(errors.New("connection reset")))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, KindTransport.Retryable())
	assert.True(t, KindServer.Retryable())
	assert.False(t, KindClient.Retryable())
	assert.False(t, ErrorKind("offline").Retryable(), "unknown kinds are never retried")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "save failed", StatusError.Label())
	assert.Equal(t, "offline", StatusOffline.Label())
	assert.Empty(t, StatusIdle.Label())
}
