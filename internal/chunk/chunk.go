// Package chunk defines the transcript chunk model shared by the search
// pipeline and the ingestion path, plus the identity and dedup helpers
// built on top of it.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Chunk is a timed transcript segment of a video.
type Chunk struct {
	// Text is the transcript content. Never empty for a valid chunk.
	Text string

	// Start and End are offsets into the video, in seconds. Start < End.
	Start float64
	End   float64

	// VideoID references the parent video.
	VideoID string

	// ChannelID references the channel the video belongs to.
	ChannelID string
}

// Validate checks structural invariants.
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("chunk text is empty")
	}
	if c.Start >= c.End {
		return fmt.Errorf("chunk timing invalid: start %v >= end %v", c.Start, c.End)
	}
	return nil
}

// Metadata returns the chunk's non-empty metadata fields keyed by canonical
// names. Only set fields appear, so two chunks with the same populated
// fields produce the same map regardless of how they were constructed.
func (c *Chunk) Metadata() map[string]string {
	m := make(map[string]string, 4)
	if c.VideoID != "" {
		m["video_id"] = c.VideoID
	}
	if c.ChannelID != "" {
		m["channel_id"] = c.ChannelID
	}
	if c.End > c.Start {
		m["start"] = FormatTimestamp(c.Start)
		m["end"] = FormatTimestamp(c.End)
	}
	return m
}

// Fingerprint computes a stable content+metadata identity for the chunk.
// The fingerprint is the SHA-256 hex digest of a canonical serialization of
// the text plus the non-empty metadata fields in sorted key order, so the
// same logical content always yields the same fingerprint.
func (c *Chunk) Fingerprint() string {
	return FingerprintOf(c.Text, c.Metadata())
}

// FingerprintOf computes the fingerprint for raw content and metadata.
// Map iteration order does not affect the result: keys are serialized sorted.
func FingerprintOf(content string, metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if metadata[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Serialize as {"content":..., "metadata":{...}} with deterministic
	// key order. encoding/json escapes consistently, which keeps the
	// digest stable across processes.
	buf := []byte(`{"content":`)
	buf = appendJSONString(buf, content)
	buf = append(buf, `,"metadata":{`...)
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, k)
		buf = append(buf, ':')
		buf = appendJSONString(buf, metadata[k])
	}
	buf = append(buf, "}}"...)

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func appendJSONString(buf []byte, s string) []byte {
	b, _ := json.Marshal(s)
	return append(buf, b...)
}

// DedupByText removes chunks whose text was already seen, preserving first
// occurrence order. Metadata differences do not rescue a duplicate.
func DedupByText(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	seen := make(map[string]struct{}, len(chunks))
	out := chunks[:0:0]
	for _, c := range chunks {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FormatTimestamp renders a second offset as HH:MM:SS for display alongside
// video links.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
