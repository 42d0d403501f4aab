package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	c := Chunk{
		Text:      "welcome to the tutorial",
		Start:     12,
		End:       31,
		VideoID:   "V1",
		ChannelID: "C1",
	}

	first := c.Fingerprint()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Fingerprint())
	}
	assert.Len(t, first, 64, "sha256 hex digest")
}

func TestFingerprintOf_KeyOrderIndependent(t *testing.T) {
	a := map[string]string{"video_id": "V1", "channel_id": "C1", "start": "00:00:12"}
	b := map[string]string{"start": "00:00:12", "channel_id": "C1", "video_id": "V1"}

	assert.Equal(t, FingerprintOf("hello", a), FingerprintOf("hello", b))
}

func TestFingerprintOf_EmptyValuesIgnored(t *testing.T) {
	with := map[string]string{"video_id": "V1", "channel_id": ""}
	without := map[string]string{"video_id": "V1"}

	assert.Equal(t, FingerprintOf("x", without), FingerprintOf("x", with))
}

func TestFingerprintOf_ContentSensitive(t *testing.T) {
	m := map[string]string{"video_id": "V1"}

	assert.NotEqual(t, FingerprintOf("a", m), FingerprintOf("b", m))
	assert.NotEqual(t, FingerprintOf("a", m), FingerprintOf("a", map[string]string{"video_id": "V2"}))
}

func TestDedupByText_FirstOccurrenceWins(t *testing.T) {
	chunks := []Chunk{
		{Text: "intro", VideoID: "V1", Start: 0, End: 5},
		{Text: "middle", VideoID: "V1", Start: 5, End: 10},
		{Text: "intro", VideoID: "V2", Start: 0, End: 5}, // duplicate text, different video
		{Text: "outro", VideoID: "V2", Start: 10, End: 15},
	}

	got := DedupByText(chunks)

	require.Len(t, got, 3)
	assert.Equal(t, "intro", got[0].Text)
	assert.Equal(t, "V1", got[0].VideoID, "first occurrence kept, later metadata dropped")
	assert.Equal(t, "middle", got[1].Text)
	assert.Equal(t, "outro", got[2].Text)
}

func TestDedupByText_Idempotent(t *testing.T) {
	chunks := []Chunk{
		{Text: "a", VideoID: "V1", Start: 0, End: 1},
		{Text: "b", VideoID: "V1", Start: 1, End: 2},
		{Text: "a", VideoID: "V3", Start: 2, End: 3},
	}

	once := DedupByText(chunks)
	twice := DedupByText(once)
	assert.Equal(t, once, twice)
}

func TestDedupByText_Empty(t *testing.T) {
	assert.Empty(t, DedupByText(nil))
	assert.Empty(t, DedupByText([]Chunk{}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		chunk   Chunk
		wantErr bool
	}{
		{"valid", Chunk{Text: "x", Start: 0, End: 1, VideoID: "V1"}, false},
		{"empty text", Chunk{Start: 0, End: 1, VideoID: "V1"}, true},
		{"start equals end", Chunk{Text: "x", Start: 5, End: 5}, true},
		{"start after end", Chunk{Text: "x", Start: 9, End: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatTimestamp(0))
	assert.Equal(t, "00:01:05", FormatTimestamp(65))
	assert.Equal(t, "01:01:01", FormatTimestamp(3661))
	assert.Equal(t, "00:00:59", FormatTimestamp(59.9))
	assert.Equal(t, "00:00:00", FormatTimestamp(-4))
}
