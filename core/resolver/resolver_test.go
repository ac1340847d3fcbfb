package resolver

import (
	"testing"

	"github.com/Jorge5452/Melodify-Deezer/model"
)

func TestResolveValidReferences(t *testing.T) {
	cases := []struct {
		name string
		ref  string
		kind model.ContentKind
		id   string
	}{
		{"plain track", "https://www.deezer.com/track/3135556", model.KindTrack, "3135556"},
		{"no scheme", "www.deezer.com/track/3135556", model.KindTrack, "3135556"},
		{"no www", "https://deezer.com/track/3135556", model.KindTrack, "3135556"},
		{"bare domain", "deezer.com/track/3135556", model.KindTrack, "3135556"},
		{"locale segment", "https://www.deezer.com/en/track/3135556", model.KindTrack, "3135556"},
		{"locale no www", "http://deezer.com/fr/track/3135556", model.KindTrack, "3135556"},
		{"trailing query", "https://www.deezer.com/track/3135556?utm_source=share", model.KindTrack, "3135556"},
		{"trailing slash", "https://www.deezer.com/track/3135556/", model.KindTrack, "3135556"},
		{"fragment", "deezer.com/track/3135556#start", model.KindTrack, "3135556"},
		{"surrounding spaces", "  https://deezer.com/track/3135556  ", model.KindTrack, "3135556"},
		{"album", "https://www.deezer.com/album/302127", model.KindAlbum, "302127"},
		{"album with locale", "https://deezer.com/es/album/302127?x=1", model.KindAlbum, "302127"},
		{"playlist", "https://www.deezer.com/playlist/908622995", model.KindPlaylist, "908622995"},
		{"playlist locale bare", "deezer.com/de/playlist/908622995", model.KindPlaylist, "908622995"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc, ok := Resolve(tc.ref)
			if !ok {
				t.Fatalf("Resolve(%q) returned invalid", tc.ref)
			}
			if desc.Kind != tc.kind {
				t.Errorf("kind: got %q, want %q", desc.Kind, tc.kind)
			}
			if desc.ID != tc.id {
				t.Errorf("id: got %q, want %q", desc.ID, tc.id)
			}
		})
	}
}

func TestResolveInvalidReferences(t *testing.T) {
	cases := []struct {
		name string
		ref  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"free text", "hola, descarga esta"},
		{"wrong domain", "https://www.spotify.com/track/3135556"},
		{"artist page", "https://www.deezer.com/artist/27"},
		{"non-numeric id", "https://www.deezer.com/track/abc"},
		{"missing id", "https://www.deezer.com/track/"},
		{"three-letter locale", "https://www.deezer.com/eng/track/3135556"},
		{"embedded in text", "look at https://www.deezer.com/track/3135556 please"},
		{"subdomain", "https://api.deezer.com/track/3135556"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if desc, ok := Resolve(tc.ref); ok {
				t.Fatalf("Resolve(%q) unexpectedly matched: %+v", tc.ref, desc)
			}
		})
	}
}

func TestFingerprintDerivation(t *testing.T) {
	track, _ := Resolve("https://www.deezer.com/track/3135556")
	if fp := track.Fingerprint(3); fp != "3135556_3" {
		t.Errorf("track fingerprint: got %q, want %q", fp, "3135556_3")
	}

	album, _ := Resolve("https://www.deezer.com/album/302127")
	if fp := album.Fingerprint(3); fp != "album_302127" {
		t.Errorf("album fingerprint: got %q, want %q", fp, "album_302127")
	}

	playlist, _ := Resolve("https://www.deezer.com/playlist/908622995")
	if fp := playlist.Fingerprint(9); fp != "playlist_908622995" {
		t.Errorf("playlist fingerprint: got %q, want %q", fp, "playlist_908622995")
	}

	// Surface URL variation must not change the fingerprint.
	variant, _ := Resolve("deezer.com/en/track/3135556?utm=1")
	if variant.Fingerprint(3) != track.Fingerprint(3) {
		t.Error("URL variants produced different fingerprints")
	}
}
