package encodeprofile

import (
	"fmt"
	"strconv"
	"time"

	"edlstream/internal/config"
)

// Profile holds the invariant encoding parameters. Every clip produced with
// the same profile is concat-compatible: same codec, profile, level, pixel
// format, constant frame rate, and closed fixed-interval GOPs.
type Profile struct {
	VideoCodec     string
	VideoProfile   string
	VideoLevel     string
	PixelFormat    string
	FrameRate      int
	GOPFrames      int
	SegmentSeconds float64
	AudioCodec     string
	AudioRate      int
	AudioChannels  int
	AudioBitrate   string

	ExtractTimeout time.Duration
	SegmentTimeout time.Duration

	// Version invalidates per-decision caches when any parameter above
	// changes in a way that affects output bytes.
	Version int
}

// FromConfig builds a Profile from the encoding section.
func FromConfig(enc config.Encoding) Profile {
	return Profile{
		VideoCodec:     enc.VideoCodec,
		VideoProfile:   enc.VideoProfile,
		VideoLevel:     enc.VideoLevel,
		PixelFormat:    enc.PixelFormat,
		FrameRate:      enc.FrameRate,
		GOPFrames:      enc.GOPFrames,
		SegmentSeconds: enc.SegmentSeconds,
		AudioCodec:     enc.AudioCodec,
		AudioRate:      enc.AudioRate,
		AudioChannels:  enc.AudioChannels,
		AudioBitrate:   enc.AudioBitrate,
		ExtractTimeout: time.Duration(enc.ExtractTimeout) * time.Second,
		SegmentTimeout: time.Duration(enc.SegmentTimeout) * time.Second,
		Version:        enc.BuilderVersion,
	}
}

// keyframeArgs is the one canonical keyframe strategy. GOPs are closed,
// fixed-interval, and scene-cut detection is disabled so every clip keys at
// the same cadence regardless of content.
func (p Profile) keyframeArgs() []string {
	gop := strconv.Itoa(p.GOPFrames)
	x264 := fmt.Sprintf("keyint=%d:min-keyint=%d:scenecut=0:open-gop=0", p.GOPFrames, p.GOPFrames)
	return []string{
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-x264-params", x264,
	}
}

func (p Profile) videoArgs() []string {
	args := []string{
		"-c:v", p.VideoCodec,
		"-pix_fmt", p.PixelFormat,
		"-profile:v", p.VideoProfile,
		"-level", p.VideoLevel,
		"-r", strconv.Itoa(p.FrameRate),
	}
	args = append(args, p.keyframeArgs()...)
	args = append(args, "-vsync", "cfr")
	return args
}

func (p Profile) audioArgs() []string {
	return []string{
		"-c:a", p.AudioCodec,
		"-ar", strconv.Itoa(p.AudioRate),
		"-ac", strconv.Itoa(p.AudioChannels),
		"-b:a", p.AudioBitrate,
	}
}

// ExtractArgs produces the argument list for re-encoding one cut of a
// source into a normalized, concat-compatible clip.
func (p Profile) ExtractArgs(sourcePath string, start, end float64, destPath string) []string {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end - start),
		"-i", sourcePath,
	}
	args = append(args, p.videoArgs()...)
	args = append(args, p.audioArgs()...)
	args = append(args,
		"-fflags", "+genpts",
		"-avoid_negative_ts", "make_zero",
		destPath,
	)
	return args
}

// ConcatSegmentArgs produces the argument list for stream-copying an
// ordered concat list into an HLS fMP4 segment set. Inputs must already be
// normalized; no re-encode happens here.
func (p Profile) ConcatSegmentArgs(concatListPath, initName, segmentPattern, manifestPath string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", formatSeconds(p.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "fmp4",
		"-hls_flags", "independent_segments",
		"-hls_fmp4_init_filename", initName,
		"-hls_segment_filename", segmentPattern,
		manifestPath,
	}
}

// DecisionCmafArgs produces the argument list for building one decision's
// CMAF fragment set directly from its source range, using the same
// normalization and keyframe strategy as extraction.
func (p Profile) DecisionCmafArgs(sourcePath string, start, end float64, initName, segmentPattern, manifestPath string) []string {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end - start),
		"-i", sourcePath,
	}
	args = append(args, p.videoArgs()...)
	args = append(args, p.audioArgs()...)
	args = append(args,
		"-fflags", "+genpts",
		"-avoid_negative_ts", "make_zero",
		"-f", "hls",
		"-hls_time", formatSeconds(p.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "fmp4",
		"-hls_flags", "independent_segments",
		"-hls_fmp4_init_filename", initName,
		"-hls_segment_filename", segmentPattern,
		manifestPath,
	)
	return args
}

// ExportConcatArgs produces the argument list for re-encoding an ordered
// concat list into a single flat file.
func (p Profile) ExportConcatArgs(concatListPath, destPath string) []string {
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
	}
	args = append(args, p.videoArgs()...)
	args = append(args, p.audioArgs()...)
	args = append(args, "-movflags", "+faststart", destPath)
	return args
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
