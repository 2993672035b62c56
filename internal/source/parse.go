package source

import (
	"errors"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/feedwatch/pkg/models"
)

var (
	// ErrNoFeeds means the listing page was recognized but held no feeds.
	ErrNoFeeds = errors.New("no feeds found")
	// ErrMissingFeedTable means the page does not look like a feed listing.
	ErrMissingFeedTable = errors.New("missing feed table")
)

// Listing identifies which page layout a document uses.
type Listing int

const (
	ListingTop Listing = iota
	ListingState
)

func (l Listing) String() string {
	if l == ListingState {
		return "state"
	}
	return "top"
}

var (
	topPattern = regexp.MustCompile(
		`(?s)<td class="c m">(?P<listeners>\d+)</td>.+?/listen/feed/(?P<id>\d+)">(?P<name>.+?)</a>(?:<br /><br />.<div class="messageBox">(?P<alert>.+?)</div>)?`)

	statePattern = regexp.MustCompile(
		`(?s)w1p">.+?<a href="/listen/feed/(?P<id>\d+)">(?P<name>.+?)</a>.+?(?:bold">(?P<alert>.+?)</font>.+?)?<td class="c m">(?P<listeners>\d+)</td>`)

	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

const feedLinkMarker = "/listen/feed/"

// ParseResult holds the feeds extracted from one listing page.
type ParseResult struct {
	Feeds   []models.FeedSnapshot
	Dropped int // records whose numeric fields did not parse
}

// Parse extracts feed snapshots from a listing page. Records with
// unparseable fields are dropped and counted rather than failing the page.
//
// The top listing always carries feeds, so an empty top page is an error.
// A state listing may legitimately be empty when no feed in the state has
// listeners; it yields an empty result instead.
func Parse(doc string, listing Listing) (ParseResult, error) {
	if !strings.Contains(doc, feedLinkMarker) {
		if listing == ListingState {
			return ParseResult{}, nil
		}
		return ParseResult{}, ErrMissingFeedTable
	}

	pattern := topPattern
	if listing == ListingState {
		pattern = statePattern
	}

	idIdx := pattern.SubexpIndex("id")
	nameIdx := pattern.SubexpIndex("name")
	listenersIdx := pattern.SubexpIndex("listeners")
	alertIdx := pattern.SubexpIndex("alert")

	var res ParseResult
	for _, m := range pattern.FindAllStringSubmatch(doc, -1) {
		id, err := strconv.ParseUint(m[idIdx], 10, 32)
		if err != nil {
			res.Dropped++
			continue
		}
		listeners, err := strconv.ParseUint(m[listenersIdx], 10, 32)
		if err != nil {
			res.Dropped++
			continue
		}
		name := cleanText(m[nameIdx])
		if name == "" {
			res.Dropped++
			continue
		}

		res.Feeds = append(res.Feeds, models.FeedSnapshot{
			ID:        uint32(id),
			Name:      name,
			Listeners: uint32(listeners),
			Alert:     cleanText(m[alertIdx]),
		})
	}

	if len(res.Feeds) == 0 && listing == ListingTop {
		return res, ErrNoFeeds
	}
	return res, nil
}

// cleanText strips markup, decodes entities and collapses whitespace.
func cleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Merge appends secondary feeds to primary ones, dropping any ID already
// present. Earlier entries win, so primary data takes precedence.
func Merge(primary, secondary []models.FeedSnapshot) []models.FeedSnapshot {
	seen := make(map[uint32]struct{}, len(primary)+len(secondary))
	out := make([]models.FeedSnapshot, 0, len(primary)+len(secondary))

	for _, list := range [][]models.FeedSnapshot{primary, secondary} {
		for _, f := range list {
			if _, dup := seen[f.ID]; dup {
				continue
			}
			seen[f.ID] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
