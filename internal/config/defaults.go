package config

const (
	defaultArtifactRoot = "~/.local/share/edlstream/artifacts"
	defaultStagingDir   = "~/.local/share/edlstream/staging"
	defaultLogDir       = "~/.local/share/edlstream/logs"
	defaultAPIBind      = "127.0.0.1:7511"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"

	defaultVideoCodec     = "libx264"
	defaultVideoProfile   = "main"
	defaultVideoLevel     = "4.1"
	defaultPixelFormat    = "yuv420p"
	defaultFrameRate      = 30
	defaultGOPFrames      = 60
	defaultSegmentSeconds = 0.5
	defaultAudioCodec     = "aac"
	defaultAudioRate      = 48000
	defaultAudioChannels  = 2
	defaultAudioBitrate   = "128k"
	defaultExtractTimeout = 300
	defaultSegmentTimeout = 300
	defaultBuilderVersion = 1

	defaultQueuePollInterval   = 2
	defaultErrorRetryInterval  = 10
	defaultMaxConcurrentBuilds = 2
	defaultLeaseTimeout        = 900
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArtifactRoot: defaultArtifactRoot,
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Encoding: Encoding{
			VideoCodec:     defaultVideoCodec,
			VideoProfile:   defaultVideoProfile,
			VideoLevel:     defaultVideoLevel,
			PixelFormat:    defaultPixelFormat,
			FrameRate:      defaultFrameRate,
			GOPFrames:      defaultGOPFrames,
			SegmentSeconds: defaultSegmentSeconds,
			AudioCodec:     defaultAudioCodec,
			AudioRate:      defaultAudioRate,
			AudioChannels:  defaultAudioChannels,
			AudioBitrate:   defaultAudioBitrate,
			ExtractTimeout: defaultExtractTimeout,
			SegmentTimeout: defaultSegmentTimeout,
			BuilderVersion: defaultBuilderVersion,
		},
		Workflow: Workflow{
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			MaxConcurrentBuilds: defaultMaxConcurrentBuilds,
			LeaseTimeout:        defaultLeaseTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
