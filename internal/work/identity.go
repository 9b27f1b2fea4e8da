// Package work holds the literary-work domain types: the resolved identity of
// a work, the persisted analysis record, and the parser that turns a model
// completion into an identity.
package work

import "fmt"

// Fallback values used whenever an identity cannot be resolved.
const (
	UnknownTitle     = "Unknown title"
	UnassignedAuthor = "Unassigned author"
)

// Identity is the resolved title and author of a literary work.
// Both fields are always non-empty; use Fallback when resolution fails.
type Identity struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Fallback returns the identity used when a work could not be identified.
func Fallback() Identity {
	return Identity{Title: UnknownTitle, Author: UnassignedAuthor}
}

// IsFallback reports whether id is the unresolved fallback pair.
func (id Identity) IsFallback() bool {
	return id == Fallback()
}

// Label renders the identity as "Title (Author)", the form used when
// building recommendation requests from history.
func (id Identity) Label() string {
	return fmt.Sprintf("%s (%s)", id.Title, id.Author)
}
