package models

import (
	"strconv"
	"strings"
)

// FeedSnapshot is one polling cycle's observation of a feed.
type FeedSnapshot struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Listeners uint32 `json:"listeners"`
	Alert     string `json:"alert,omitempty"`
}

// HasAlert reports whether the source published an operator alert for the feed.
func (f FeedSnapshot) HasAlert() bool {
	return f.Alert != ""
}

// IdentKind distinguishes the two variants of a FeedIdent.
type IdentKind uint8

const (
	IdentByName IdentKind = iota + 1
	IdentByID
)

// FeedIdent addresses a feed either by name or by numeric ID.
// Two idents are equal only when both the variant and the value match;
// the zero value matches nothing.
type FeedIdent struct {
	kind IdentKind
	name string
	id   uint32
}

// IdentName returns a FeedIdent matching feeds by name.
func IdentName(name string) FeedIdent {
	return FeedIdent{kind: IdentByName, name: name}
}

// IdentID returns a FeedIdent matching feeds by ID.
func IdentID(id uint32) FeedIdent {
	return FeedIdent{kind: IdentByID, id: id}
}

func (i FeedIdent) Kind() IdentKind { return i.kind }

// Name returns the name and true for name idents.
func (i FeedIdent) Name() (string, bool) {
	return i.name, i.kind == IdentByName
}

// ID returns the feed ID and true for ID idents.
func (i FeedIdent) ID() (uint32, bool) {
	return i.id, i.kind == IdentByID
}

// Matches reports whether the ident refers to the given snapshot.
// Names are compared case-insensitively with surrounding whitespace ignored.
func (i FeedIdent) Matches(f FeedSnapshot) bool {
	switch i.kind {
	case IdentByID:
		return f.ID == i.id
	case IdentByName:
		return strings.EqualFold(strings.TrimSpace(i.name), strings.TrimSpace(f.Name))
	default:
		return false
	}
}

func (i FeedIdent) String() string {
	switch i.kind {
	case IdentByID:
		return "id:" + strconv.FormatUint(uint64(i.id), 10)
	case IdentByName:
		return "name:" + strconv.Quote(i.name)
	default:
		return "invalid"
	}
}

// MarshalText renders the identifier the same way String does, so
// identifier lists print readably as JSON.
func (i FeedIdent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// MatchAny reports whether any ident in the list refers to the snapshot.
func MatchAny(idents []FeedIdent, f FeedSnapshot) bool {
	for _, i := range idents {
		if i.Matches(f) {
			return true
		}
	}
	return false
}
