package work

import (
	"strings"

	"github.com/goccy/go-json"
)

// fenceMarkers are the code-fence tokens models wrap JSON answers in.
// The tagged form must be removed before the bare one.
var fenceMarkers = []string{"```json", "```JSON", "```"}

type rawIdentity struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

// Resolve turns a raw model completion into an Identity.
//
// Fence markers are stripped, the rest is trimmed and decoded as a single JSON
// object with non-empty "title" and "author" strings. Anything else (sentinel
// strings, prose, arrays, partial objects) yields Fallback. There is no
// partial success and Resolve never fails.
func Resolve(raw string) Identity {
	body := StripFences(raw)
	if body == "" || body[0] != '{' {
		return Fallback()
	}

	var parsed rawIdentity
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return Fallback()
	}
	if parsed.Title == nil || parsed.Author == nil {
		return Fallback()
	}
	if strings.TrimSpace(*parsed.Title) == "" || strings.TrimSpace(*parsed.Author) == "" {
		return Fallback()
	}

	return Identity{Title: *parsed.Title, Author: *parsed.Author}
}

// StripFences removes markdown code-fence markers and surrounding whitespace.
func StripFences(s string) string {
	for _, marker := range fenceMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.TrimSpace(s)
}
