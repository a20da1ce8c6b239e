package percut

import (
	"fmt"
	"math"
	"os"
	"path"
	"strconv"
	"strings"

	"edlstream/internal/services"
)

// Fragment is one media segment line from a decision manifest.
type Fragment struct {
	Duration float64
	URI      string
}

// DecisionGroup is one decision's contribution to the assembled playlist.
type DecisionGroup struct {
	InitURI   string
	Fragments []Fragment
}

// parseFragmentManifest extracts EXTINF/URI pairs from a per-decision HLS
// manifest. URIs are reduced to their base name so the assembled playlist
// only ever references stable, relative, decision-scoped files.
func parseFragmentManifest(manifestPath string) ([]Fragment, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, services.Wrap(services.ErrIntegrity, "percut", "assemble", "read decision manifest", err)
	}

	var fragments []Fragment
	pending := -1.0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			value := strings.TrimSuffix(strings.TrimPrefix(line, "#EXTINF:"), ",")
			if comma := strings.Index(value, ","); comma >= 0 {
				value = value[:comma]
			}
			parsed, parseErr := strconv.ParseFloat(value, 64)
			if parseErr != nil {
				return nil, services.Wrap(services.ErrIntegrity, "percut", "assemble",
					fmt.Sprintf("bad EXTINF in %s: %q", manifestPath, line), parseErr)
			}
			pending = parsed
		case line == "" || strings.HasPrefix(line, "#"):
			// Other tags carry no fragment data here.
		default:
			if pending < 0 {
				return nil, services.Wrap(services.ErrIntegrity, "percut", "assemble",
					fmt.Sprintf("fragment without EXTINF in %s: %q", manifestPath, line), nil)
			}
			fragments = append(fragments, Fragment{Duration: pending, URI: path.Base(line)})
			pending = -1.0
		}
	}
	if len(fragments) == 0 {
		return nil, services.Wrap(services.ErrIntegrity, "percut", "assemble",
			fmt.Sprintf("no fragments in %s", manifestPath), nil)
	}
	return fragments, nil
}

// AssemblePlaylist renders a VOD playlist from ordered decision groups.
// Each group opens with a discontinuity marker and its own EXT-X-MAP, so a
// player reinitializes decoding at every decision boundary.
func AssemblePlaylist(groups []DecisionGroup) string {
	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#EXT-X-VERSION:7\n")
	fmt.Fprintf(&builder, "#EXT-X-TARGETDURATION:%d\n", targetDuration(groups))
	builder.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	builder.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	builder.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	for _, group := range groups {
		builder.WriteString("#EXT-X-DISCONTINUITY\n")
		fmt.Fprintf(&builder, "#EXT-X-MAP:URI=%q\n", group.InitURI)
		for _, fragment := range group.Fragments {
			fmt.Fprintf(&builder, "#EXTINF:%.5f,\n", fragment.Duration)
			builder.WriteString(fragment.URI + "\n")
		}
	}

	builder.WriteString("#EXT-X-ENDLIST\n")
	return builder.String()
}

// targetDuration is the ceiling of the longest fragment duration, and at
// least 1 as required for a valid playlist.
func targetDuration(groups []DecisionGroup) int {
	longest := 0.0
	for _, group := range groups {
		for _, fragment := range group.Fragments {
			if fragment.Duration > longest {
				longest = fragment.Duration
			}
		}
	}
	target := int(math.Ceil(longest))
	if target < 1 {
		target = 1
	}
	return target
}

// RewriteManifestURIs rewrites every URI in an HLS manifest through fn,
// covering both plain fragment lines and URI attributes in EXT-X-MAP tags.
// Serving layers use it to prefix artifact routes without touching the
// files on disk.
func RewriteManifestURIs(manifest string, fn func(uri string) string) string {
	lines := strings.Split(manifest, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#EXT-X-MAP:"):
			lines[i] = rewriteMapURI(trimmed, fn)
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			// Tag or blank line without a URI payload.
		default:
			lines[i] = fn(trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteMapURI(line string, fn func(uri string) string) string {
	const marker = `URI="`
	start := strings.Index(line, marker)
	if start < 0 {
		return line
	}
	start += len(marker)
	end := strings.Index(line[start:], `"`)
	if end < 0 {
		return line
	}
	return line[:start] + fn(line[start:start+end]) + line[start+end:]
}
