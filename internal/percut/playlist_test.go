package percut

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"edlstream/internal/services"
)

func TestParseFragmentManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dec_1.m3u8")
	manifest := `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:1
#EXT-X-MAP:URI="dec_1.init.mp4"
#EXTINF:0.50000,
/abs/path/dec_1-00000.m4s
#EXTINF:0.43300,
dec_1-00001.m4s
#EXT-X-ENDLIST
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	fragments, err := parseFragmentManifest(path)
	if err != nil {
		t.Fatalf("parseFragmentManifest: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("fragments = %d", len(fragments))
	}
	if fragments[0].URI != "dec_1-00000.m4s" {
		t.Errorf("absolute URIs must be reduced to base names, got %q", fragments[0].URI)
	}
	if fragments[1].Duration < 0.432 || fragments[1].Duration > 0.434 {
		t.Errorf("duration = %v", fragments[1].Duration)
	}
}

func TestParseFragmentManifestRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dec_1.m3u8")
	if err := os.WriteFile(path, []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := parseFragmentManifest(path); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestAssemblePlaylistTargetDuration(t *testing.T) {
	groups := []DecisionGroup{
		{InitURI: "dec_1.init.mp4", Fragments: []Fragment{{Duration: 0.5, URI: "dec_1-00000.m4s"}}},
		{InitURI: "dec_2.init.mp4", Fragments: []Fragment{{Duration: 2.4, URI: "dec_2-00000.m4s"}}},
	}
	playlist := AssemblePlaylist(groups)
	if !strings.Contains(playlist, "#EXT-X-TARGETDURATION:3\n") {
		t.Fatalf("target duration must be ceil(2.4): %q", playlist)
	}
}

func TestAssemblePlaylistDurationSum(t *testing.T) {
	groups := []DecisionGroup{
		{InitURI: "dec_1.init.mp4", Fragments: []Fragment{
			{Duration: 0.5, URI: "dec_1-00000.m4s"},
			{Duration: 0.5, URI: "dec_1-00001.m4s"},
		}},
		{InitURI: "dec_2.init.mp4", Fragments: []Fragment{
			{Duration: 0.75, URI: "dec_2-00000.m4s"},
		}},
	}
	playlist := AssemblePlaylist(groups)

	var sum float64
	for _, line := range strings.Split(playlist, "\n") {
		if strings.HasPrefix(line, "#EXTINF:") {
			value := strings.TrimSuffix(strings.TrimPrefix(line, "#EXTINF:"), ",")
			duration, err := strconv.ParseFloat(value, 64)
			if err != nil {
				t.Fatalf("parse %q: %v", line, err)
			}
			sum += duration
		}
	}
	if sum < 1.74 || sum > 1.76 {
		t.Fatalf("duration sum = %v, want 1.75", sum)
	}
}

func TestRewriteManifestURIs(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-MAP:URI="dec_1.init.mp4"
#EXTINF:0.50000,
dec_1-00000.m4s
#EXT-X-ENDLIST`

	rewritten := RewriteManifestURIs(manifest, func(uri string) string {
		return "/api/edits/7/segments/" + uri
	})
	if !strings.Contains(rewritten, `#EXT-X-MAP:URI="/api/edits/7/segments/dec_1.init.mp4"`) {
		t.Errorf("map URI not rewritten: %q", rewritten)
	}
	if !strings.Contains(rewritten, "\n/api/edits/7/segments/dec_1-00000.m4s\n") {
		t.Errorf("fragment URI not rewritten: %q", rewritten)
	}
	if !strings.Contains(rewritten, "#EXTINF:0.50000,") {
		t.Error("tags must pass through unchanged")
	}
}
