// Package resolver turns inbound reference strings into typed content
// descriptors. It is a pure function over strings: no I/O, no side effects,
// and every input yields exactly one outcome.
package resolver

import (
	"regexp"
	"strings"

	"github.com/Jorge5452/Melodify-Deezer/model"
)

// One pattern per content kind, tried in order. All three tolerate an
// optional scheme, a "www." prefix, a two-letter locale path segment and
// trailing query or fragment noise.
var patterns = []struct {
	kind model.ContentKind
	re   *regexp.Regexp
}{
	{model.KindTrack, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?track/(\d+)(?:[/?#].*)?$`)},
	{model.KindAlbum, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?album/(\d+)(?:[/?#].*)?$`)},
	{model.KindPlaylist, regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?playlist/(\d+)(?:[/?#].*)?$`)},
}

// Resolve parses a reference string into a ContentDescriptor. The second
// return value is false when the string matches no recognized content shape.
func Resolve(reference string) (model.ContentDescriptor, bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return model.ContentDescriptor{}, false
	}

	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(reference); m != nil {
			return model.ContentDescriptor{Kind: p.kind, ID: m[1]}, true
		}
	}
	return model.ContentDescriptor{}, false
}
