package clip

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"edlstream/internal/edl"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/services"
)

type fakeRunner struct {
	calls int
	fail  error
	// onRun fabricates output files the way a real transcoder would.
	onRun func(req ffmpeg.Request) error
}

func (f *fakeRunner) Run(ctx context.Context, req ffmpeg.Request) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	if f.onRun != nil {
		return f.onRun(req)
	}
	return nil
}

func writeClipOnRun(t *testing.T) func(req ffmpeg.Request) error {
	t.Helper()
	return func(req ffmpeg.Request) error {
		dest := req.Args[len(req.Args)-1]
		return os.WriteFile(dest, []byte("clip-bytes"), 0o644)
	}
}

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestExtractWritesClip(t *testing.T) {
	runner := &fakeRunner{onRun: writeClipOnRun(t)}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)
	dest := filepath.Join(t.TempDir(), "clip_000.mp4")

	entry := edl.Entry{SourcePath: sourceFile(t), Start: 1, End: 3}
	if err := extractor.Extract(context.Background(), entry, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("calls = %d", runner.calls)
	}
}

func TestExtractSkipsExistingClip(t *testing.T) {
	runner := &fakeRunner{onRun: writeClipOnRun(t)}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)
	dest := filepath.Join(t.TempDir(), "clip_000.mp4")
	if err := os.WriteFile(dest, []byte("existing"), 0o644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	entry := edl.Entry{SourcePath: sourceFile(t), Start: 1, End: 3}
	if err := extractor.Extract(context.Background(), entry, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("existing non-empty clip must be reused, calls = %d", runner.calls)
	}
}

func TestExtractDoesNotSkipEmptyClip(t *testing.T) {
	runner := &fakeRunner{onRun: writeClipOnRun(t)}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)
	dest := filepath.Join(t.TempDir(), "clip_000.mp4")
	if err := os.WriteFile(dest, nil, 0o644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	entry := edl.Entry{SourcePath: sourceFile(t), Start: 1, End: 3}
	if err := extractor.Extract(context.Background(), entry, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("empty clip must be rebuilt, calls = %d", runner.calls)
	}
}

func TestExtractMissingSource(t *testing.T) {
	runner := &fakeRunner{}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)

	entry := edl.Entry{SourcePath: filepath.Join(t.TempDir(), "missing.mp4"), Start: 0, End: 1}
	err := extractor.Extract(context.Background(), entry, filepath.Join(t.TempDir(), "clip.mp4"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("transcoder must not run for a missing source")
	}
}

func TestExtractFailureRemovesPartialOutput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	boom := services.Wrap(services.ErrExternalTool, "ffmpeg", "extract", "exit status 1", errors.New("Invalid data"))
	runner := &fakeRunner{fail: boom}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)

	entry := edl.Entry{SourcePath: sourceFile(t), Start: 0, End: 1}
	err := extractor.Extract(context.Background(), entry, dest)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("partial clip must be removed on failure")
	}
}

func TestExtractEmptyOutputIsIntegrityError(t *testing.T) {
	runner := &fakeRunner{onRun: func(req ffmpeg.Request) error {
		return os.WriteFile(req.Args[len(req.Args)-1], nil, 0o644)
	}}
	extractor := NewExtractor(runner, encodeprofile.Profile{}, nil)

	entry := edl.Entry{SourcePath: sourceFile(t), Start: 0, End: 1}
	err := extractor.Extract(context.Background(), entry, filepath.Join(t.TempDir(), "clip.mp4"))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}
