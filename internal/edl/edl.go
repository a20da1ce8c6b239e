package edl

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"edlstream/internal/services"
)

// MinRangeSeconds is the shortest cut the pipeline accepts. Sub-epsilon
// ranges produce zero-frame clips at the configured frame rate.
const MinRangeSeconds = 0.01

// Entry is one ordered cut: a half-open time range within a source file.
type Entry struct {
	// SourceRef identifies the source independently of its filesystem
	// location. Empty falls back to SourcePath for hashing.
	SourceRef  string  `json:"source_ref,omitempty"`
	SourcePath string  `json:"source"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// Ref returns the stable identifier used when hashing the entry.
func (e Entry) Ref() string {
	if e.SourceRef != "" {
		return e.SourceRef
	}
	return e.SourcePath
}

// Duration returns the length of the cut in seconds.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

func (e Entry) validate(index int) error {
	if strings.TrimSpace(e.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "edl", "validate",
			fmt.Sprintf("entry %d: empty source path", index), nil)
	}
	if e.Start < 0 || e.End < 0 {
		return services.Wrap(services.ErrValidation, "edl", "validate",
			fmt.Sprintf("entry %d: negative boundary (start=%.3f end=%.3f)", index, e.Start, e.End), nil)
	}
	if e.End-e.Start < MinRangeSeconds {
		return services.Wrap(services.ErrValidation, "edl", "validate",
			fmt.Sprintf("entry %d: range shorter than %.2fs (start=%.3f end=%.3f)", index, MinRangeSeconds, e.Start, e.End), nil)
	}
	return nil
}

// List is an ordered edit decision list. Order is significant and duplicate
// entries are legal.
type List []Entry

// Validate checks every entry before any filesystem or subprocess work.
func (l List) Validate() error {
	if len(l) == 0 {
		return services.Wrap(services.ErrValidation, "edl", "validate", "empty edit decision list", nil)
	}
	for i, entry := range l {
		if err := entry.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDurations rejects entries whose end exceeds the known duration of
// their source. Sources absent from the map are skipped.
func (l List) ValidateDurations(durations map[string]float64) error {
	for i, entry := range l {
		limit, ok := durations[entry.SourcePath]
		if !ok || limit <= 0 {
			continue
		}
		if entry.End > limit+MinRangeSeconds {
			return services.Wrap(services.ErrValidation, "edl", "validate",
				fmt.Sprintf("entry %d: end %.3f exceeds source duration %.3f", i, entry.End, limit), nil)
		}
	}
	return nil
}

// Hash returns the SHA-1 content address of the list. Boundaries are
// rounded to millisecond precision, so jitter below 0.5ms does not change
// the hash while any visible edit does.
func (l List) Hash() string {
	digest := sha1.New()
	for _, entry := range l {
		digest.Write([]byte(entry.Ref()))
		fmt.Fprintf(digest, "%.3f,%.3f;", entry.Start, entry.End)
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// TotalDuration sums the cut durations in seconds.
func (l List) TotalDuration() float64 {
	var total float64
	for _, entry := range l {
		total += entry.Duration()
	}
	return total
}

// SourcePaths returns the distinct source paths in first-seen order.
func (l List) SourcePaths() []string {
	seen := make(map[string]struct{}, len(l))
	var paths []string
	for _, entry := range l {
		if _, ok := seen[entry.SourcePath]; ok {
			continue
		}
		seen[entry.SourcePath] = struct{}{}
		paths = append(paths, entry.SourcePath)
	}
	return paths
}

// LoadFile reads a JSON cuts file (array of entries) and validates it.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "edl", "load", "read cuts file", err)
	}
	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, services.Wrap(services.ErrValidation, "edl", "load", "parse cuts file", err)
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}
