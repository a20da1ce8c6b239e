package unified

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edlstream/internal/artifacts"
	"edlstream/internal/clip"
	"edlstream/internal/edl"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/segmenter"
	"edlstream/internal/services"
)

// fakeTranscoder fabricates the files a real transcoder run would produce.
type fakeTranscoder struct {
	extracts int
	segments int
	// failExtractAt fails the extraction with this zero-based index; -1
	// disables failure injection.
	failExtractAt int
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{failExtractAt: -1}
}

func (f *fakeTranscoder) Run(ctx context.Context, req ffmpeg.Request) error {
	switch req.Operation {
	case "extract":
		index := f.extracts
		f.extracts++
		if index == f.failExtractAt {
			return services.Wrap(services.ErrExternalTool, "ffmpeg", "extract", "exit status 1",
				errors.New("Invalid data found when processing input"))
		}
		return os.WriteFile(req.Args[len(req.Args)-1], []byte("clip"), 0o644)
	case "segment":
		f.segments++
		destDir := filepath.Dir(req.Args[len(req.Args)-1])
		for name, body := range map[string]string{
			segmenter.ManifestName: "#EXTM3U\n#EXT-X-VERSION:7\n",
			segmenter.InitName:     "init",
			"seg-00000.m4s":        "media",
		} {
			if err := os.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New("unexpected operation " + req.Operation)
	}
}

func newTestBuilder(t *testing.T, runner ffmpeg.Runner) (*Builder, *artifacts.Store) {
	t.Helper()
	store := artifacts.NewStore(filepath.Join(t.TempDir(), "unified"), time.Second, nil)
	profile := encodeprofile.Profile{}
	builder := NewBuilder(
		store,
		clip.NewExtractor(runner, profile, nil),
		segmenter.New(runner, profile, nil),
		filepath.Join(t.TempDir(), "staging"),
		nil,
	)
	return builder, store
}

func testList(t *testing.T, entries int) edl.List {
	t.Helper()
	source := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(source, []byte("source"), 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	var list edl.List
	for i := 0; i < entries; i++ {
		list = append(list, edl.Entry{SourcePath: source, Start: float64(i), End: float64(i) + 1})
	}
	return list
}

func TestBuildProducesReadyArtifact(t *testing.T) {
	runner := newFakeTranscoder()
	builder, store := newTestBuilder(t, runner)
	list := testList(t, 3)

	result, err := builder.Build(context.Background(), list)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Status != artifacts.StatusReady || result.CacheHit {
		t.Fatalf("result = %+v", result)
	}
	if runner.extracts != 3 || runner.segments != 1 {
		t.Fatalf("extracts=%d segments=%d", runner.extracts, runner.segments)
	}

	record, err := store.Status(list.Hash())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if record.Status != artifacts.StatusReady {
		t.Fatalf("record = %+v", record)
	}
}

func TestBuildIsIdempotentForSameContent(t *testing.T) {
	runner := newFakeTranscoder()
	builder, _ := newTestBuilder(t, runner)
	list := testList(t, 2)

	if _, err := builder.Build(context.Background(), list); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	extractsAfterFirst := runner.extracts

	result, err := builder.Build(context.Background(), list)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if !result.CacheHit || result.Status != artifacts.StatusReady {
		t.Fatalf("result = %+v", result)
	}
	if runner.extracts != extractsAfterFirst || runner.segments != 1 {
		t.Fatal("re-request of a ready hash must perform no subprocess work")
	}
}

func TestBuildFailurePropagatesWithoutConcatenation(t *testing.T) {
	runner := newFakeTranscoder()
	runner.failExtractAt = 1
	builder, store := newTestBuilder(t, runner)
	list := testList(t, 3)

	_, err := builder.Build(context.Background(), list)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if runner.segments != 0 {
		t.Fatal("segmentation must not run after a failed extraction")
	}

	record, statusErr := store.Status(list.Hash())
	if statusErr != nil {
		t.Fatalf("Status: %v", statusErr)
	}
	if record.Status != artifacts.StatusFailed {
		t.Fatalf("record = %+v", record)
	}
	if !strings.Contains(record.Error, "Invalid data found") {
		t.Fatalf("diagnostic not persisted: %q", record.Error)
	}
}

func TestBuildRejectsEmptyListBeforeAnyIO(t *testing.T) {
	runner := newFakeTranscoder()
	builder, store := newTestBuilder(t, runner)

	_, err := builder.Build(context.Background(), edl.List{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if entries, readErr := os.ReadDir(store.Root()); readErr == nil && len(entries) != 0 {
		t.Fatalf("no artifact directories may exist, found %d", len(entries))
	}
	if runner.extracts != 0 {
		t.Fatal("no subprocess work for an invalid list")
	}
}

func TestStatusWithoutBuilding(t *testing.T) {
	builder, _ := newTestBuilder(t, newFakeTranscoder())
	list := testList(t, 1)

	result, err := builder.Status(list)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if result.Status != artifacts.StatusMissing || result.CacheHit {
		t.Fatalf("result = %+v", result)
	}
}
