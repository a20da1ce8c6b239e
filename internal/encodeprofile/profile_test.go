package encodeprofile

import (
	"strings"
	"testing"
	"time"

	"edlstream/internal/config"
)

func testProfile() Profile {
	return FromConfig(config.Encoding{
		VideoCodec:     "libx264",
		VideoProfile:   "main",
		VideoLevel:     "4.1",
		PixelFormat:    "yuv420p",
		FrameRate:      30,
		GOPFrames:      60,
		SegmentSeconds: 0.5,
		AudioCodec:     "aac",
		AudioRate:      48000,
		AudioChannels:  2,
		AudioBitrate:   "128k",
		ExtractTimeout: 300,
		SegmentTimeout: 300,
		BuilderVersion: 1,
	})
}

func TestFromConfigTimeouts(t *testing.T) {
	p := testProfile()
	if p.ExtractTimeout != 300*time.Second || p.SegmentTimeout != 300*time.Second {
		t.Fatalf("timeouts = %v %v", p.ExtractTimeout, p.SegmentTimeout)
	}
}

func TestExtractArgsNormalization(t *testing.T) {
	args := strings.Join(testProfile().ExtractArgs("/src/a.mp4", 1.5, 4.25, "/tmp/clip.mp4"), " ")

	for _, want := range []string{
		"-ss 1.500 -t 2.750 -i /src/a.mp4",
		"-c:v libx264",
		"-pix_fmt yuv420p",
		"-profile:v main",
		"-level 4.1",
		"-r 30",
		"-g 60 -keyint_min 60 -sc_threshold 0",
		"-x264-params keyint=60:min-keyint=60:scenecut=0:open-gop=0",
		"-vsync cfr",
		"-c:a aac -ar 48000 -ac 2 -b:a 128k",
		"-fflags +genpts",
		"-avoid_negative_ts make_zero",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("missing %q in %q", want, args)
		}
	}
	if !strings.HasSuffix(args, "/tmp/clip.mp4") {
		t.Errorf("destination must be last: %q", args)
	}
}

func TestConcatSegmentArgsStreamCopy(t *testing.T) {
	args := strings.Join(testProfile().ConcatSegmentArgs("/stage/concat.txt", "init.mp4", "/out/seg-%05d.m4s", "/out/manifest.m3u8"), " ")

	for _, want := range []string{
		"-f concat -safe 0 -i /stage/concat.txt",
		"-c copy",
		"-hls_time 0.500",
		"-hls_playlist_type vod",
		"-hls_segment_type fmp4",
		"-hls_flags independent_segments",
		"-hls_fmp4_init_filename init.mp4",
		"-hls_segment_filename /out/seg-%05d.m4s",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("missing %q in %q", want, args)
		}
	}
	if strings.Contains(args, "-c:v") {
		t.Error("segmentation must not re-encode")
	}
}

func TestDecisionCmafArgsSharesKeyframeStrategy(t *testing.T) {
	extract := strings.Join(testProfile().ExtractArgs("/src/a.mp4", 0, 1, "x.mp4"), " ")
	cmaf := strings.Join(testProfile().DecisionCmafArgs("/src/a.mp4", 0, 1, "dec_7.init.mp4", "dec_7-%05d.m4s", "dec_7.m3u8"), " ")

	keyframe := "-x264-params keyint=60:min-keyint=60:scenecut=0:open-gop=0"
	if !strings.Contains(extract, keyframe) || !strings.Contains(cmaf, keyframe) {
		t.Fatal("both paths must share the keyframe strategy")
	}
	if !strings.Contains(cmaf, "-hls_fmp4_init_filename dec_7.init.mp4") {
		t.Errorf("decision init filename missing: %q", cmaf)
	}
}

func TestExportConcatArgsReencodes(t *testing.T) {
	args := strings.Join(testProfile().ExportConcatArgs("/stage/concat.txt", "/out/final.mp4"), " ")
	if !strings.Contains(args, "-c:v libx264") {
		t.Errorf("export must re-encode: %q", args)
	}
	if !strings.Contains(args, "-movflags +faststart") {
		t.Errorf("export must faststart: %q", args)
	}
}
