package segmenter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edlstream/internal/encodeprofile"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/services"
)

type fakeRunner struct {
	calls int
	fail  error
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

func seedClips(t *testing.T, dir string, count int) []string {
	t.Helper()
	var paths []string
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, "clip_"+string(rune('a'+i))+".mp4")
		if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
			t.Fatalf("seed clip: %v", err)
		}
		paths = append(paths, path)
	}
	return paths
}

func fabricateArtifacts(t *testing.T, destDir string) func(req ffmpeg.Request) error {
	t.Helper()
	return func(req ffmpeg.Request) error {
		for name, body := range map[string]string{
			ManifestName:    "#EXTM3U\n",
			InitName:        "init",
			"seg-00000.m4s": "media",
		} {
			if err := os.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestSegmentWritesConcatListInOrder(t *testing.T) {
	workDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "out")
	clips := seedClips(t, t.TempDir(), 3)
	runner := &fakeRunner{onRun: fabricateArtifacts(t, destDir)}

	s := New(runner, encodeprofile.Profile{}, nil)
	if err := s.Segment(context.Background(), clips, workDir, destDir); err != nil {
		t.Fatalf("Segment: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "concat.txt"))
	if err != nil {
		t.Fatalf("read concat list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("concat lines = %d", len(lines))
	}
	for i, line := range lines {
		if line != "file '"+clips[i]+"'" {
			t.Errorf("line %d = %q", i, line)
		}
	}
}

func TestSegmentRejectsEmptyClipSet(t *testing.T) {
	s := New(&fakeRunner{}, encodeprofile.Profile{}, nil)
	err := s.Segment(context.Background(), nil, t.TempDir(), t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSegmentRejectsEmptyClipFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	runner := &fakeRunner{}
	s := New(runner, encodeprofile.Profile{}, nil)
	err := s.Segment(context.Background(), []string{empty}, dir, filepath.Join(dir, "out"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("transcoder must not run when inputs are invalid")
	}
}

func TestSegmentVerifiesOutputs(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "out")
	clips := seedClips(t, t.TempDir(), 1)
	// Runner succeeds but produces nothing.
	s := New(&fakeRunner{}, encodeprofile.Profile{}, nil)
	err := s.Segment(context.Background(), clips, t.TempDir(), destDir)
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestWriteConcatListEscapesQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concat.txt")
	if err := WriteConcatList(path, []string{"/media/it's here.mp4"}); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}
	data, _ := os.ReadFile(path)
	if want := `file '/media/it'\''s here.mp4'` + "\n"; string(data) != want {
		t.Fatalf("got %q, want %q", data, want)
	}
}

func TestVerifyArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := VerifyArtifacts(dir); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("empty dir: %v", err)
	}

	writeFile := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	writeFile(ManifestName, "#EXTM3U\n")
	writeFile(InitName, "init")
	if err := VerifyArtifacts(dir); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("no media segments: %v", err)
	}

	writeFile("seg-00000.m4s", "")
	if err := VerifyArtifacts(dir); !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("empty media segment: %v", err)
	}

	writeFile("seg-00001.m4s", "media")
	if err := VerifyArtifacts(dir); err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
}
