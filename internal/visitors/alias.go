package visitors

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

var readerAdjectives = []string{
	"Attentive", "Avid", "Bookish", "Curious", "Devoted", "Eager", "Keen", "Studious", "Thoughtful", "Wandering",
	"Quiet", "Patient", "Nimble", "Restless", "Casual", "Careful", "Hungry", "Sleepy", "Bright", "Early",
	"Midnight", "Sunday", "Distant", "Loyal", "Brave", "Gentle", "Lucky", "Merry", "Swift", "Witty",
	"Jolly", "Calm", "Bold", "Clever", "Dreamy", "Friendly", "Humble", "Noble", "Sly", "Fearless",
}

var readerNouns = []string{
	"Reader", "Scribe", "Skimmer", "Scholar", "Wanderer", "Critic", "Editor", "Poet", "Lurker", "Traveler",
	"Owl", "Fox", "Otter", "Heron", "Badger", "Finch", "Lynx", "Marten", "Raven", "Wren",
	"Hare", "Moth", "Newt", "Puffin", "Robin", "Stoat", "Teal", "Vole", "Crane", "Bookworm",
}

// aliasNamespace derives a stable UUID for ids that are not UUIDs themselves.
var aliasNamespace = uuid.MustParse("5b1f6a9e-3c2d-4e8f-9a7b-2d4c6e8f0a1b")

// Aliaser turns visitor ids into stable "Adjective Noun" display names so the
// activity feed can tell visitors apart without exposing their ids.
type Aliaser struct {
	adjectives []string
	nouns      []string
}

// DefaultAliaser uses the built-in reader word lists.
var DefaultAliaser = &Aliaser{adjectives: readerAdjectives, nouns: readerNouns}

func NewAliaser(adjectives, nouns []string) (*Aliaser, error) {
	if len(adjectives) == 0 || len(nouns) == 0 {
		return nil, errors.New("aliaser needs at least one adjective and one noun")
	}
	return &Aliaser{adjectives: adjectives, nouns: nouns}, nil
}

// Alias picks the adjective from the first four bytes of the visitor UUID and
// the noun from bytes 10-13, skipping the version and variant bits. Visitor
// ids are random v4 UUIDs, so their bytes are used as they are.
func (a *Aliaser) Alias(visitorID string) string {
	id := uuid.NewSHA1(aliasNamespace, []byte(visitorID))
	if IsWellFormed(visitorID) {
		id = uuid.MustParse(visitorID)
	}

	adjective := binary.BigEndian.Uint32(id[0:4]) % uint32(len(a.adjectives))
	noun := binary.BigEndian.Uint32(id[10:14]) % uint32(len(a.nouns))
	return a.adjectives[adjective] + " " + a.nouns[noun]
}
