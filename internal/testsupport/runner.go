package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"edlstream/internal/media/ffmpeg"
)

// FakeRunner records transcoder requests and fabricates the files each
// operation would produce, keyed by the destination argument.
type FakeRunner struct {
	mu       sync.Mutex
	requests []ffmpeg.Request

	// Fail, when set, is returned for every run after recording.
	Fail error
}

// Run fabricates outputs for known operations.
func (f *FakeRunner) Run(ctx context.Context, req ffmpeg.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Fail != nil {
		return f.Fail
	}

	dest := req.Args[len(req.Args)-1]
	switch req.Operation {
	case "extract", "export":
		return os.WriteFile(dest, []byte("output"), 0o644)
	case "segment":
		destDir := filepath.Dir(dest)
		for name, body := range map[string]string{
			"manifest.m3u8": "#EXTM3U\n#EXT-X-VERSION:7\n",
			"init.mp4":      "init",
			"seg-00000.m4s": "media",
		} {
			if err := os.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	case "decision-cmaf":
		destDir := filepath.Dir(dest)
		base := filepath.Base(dest)
		base = base[:len(base)-len(".m3u8")]
		manifest := "#EXTM3U\n#EXT-X-VERSION:7\n#EXT-X-TARGETDURATION:1\n" +
			fmt.Sprintf("#EXT-X-MAP:URI=%q\n#EXTINF:0.50000,\n%s-00000.m4s\n#EXT-X-ENDLIST\n", base+".init.mp4", base)
		for name, body := range map[string]string{
			base + ".init.mp4":  "init",
			base + "-00000.m4s": "media",
			base + ".m3u8":      manifest,
		} {
			if err := os.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unexpected operation %q", req.Operation)
	}
}

// Requests returns a copy of the recorded requests.
func (f *FakeRunner) Requests() []ffmpeg.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]ffmpeg.Request, len(f.requests))
	copy(cp, f.requests)
	return cp
}

// Calls returns how many runs were recorded.
func (f *FakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var _ ffmpeg.Runner = (*FakeRunner)(nil)
