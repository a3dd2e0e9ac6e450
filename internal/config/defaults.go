package config

const (
	defaultStateDir                  = "~/.local/share/paperling"
	defaultLogDir                    = "~/.local/share/paperling/logs"
	defaultLogRetentionDays          = 30
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultAPIBind                   = ":3000"
	defaultTagName                   = "docling"
	defaultPaperlessRequestTimeout   = 30
	defaultPaperlessRequestsPerSec   = 5
	defaultDoclingBinary             = "docling"
	defaultDoclingPipeline           = "vlm"
	defaultDoclingModel              = "smoldocling"
	defaultDoclingDevice             = "cuda"
	defaultDoclingThreads            = 32
	defaultDoclingPDFBackend         = "dlparse_v4"
	defaultDoclingOCREngine          = "easyocr"
	defaultDoclingScratchDir         = "/tmp/md"
	defaultWorkflowPollIntervalMS    = 60000
	defaultWorkflowMaxBackoffSeconds = 3600
	defaultNtfyRequestTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Paperless: Paperless{
			TagName:           defaultTagName,
			RequestTimeout:    defaultPaperlessRequestTimeout,
			RequestsPerSecond: defaultPaperlessRequestsPerSec,
		},
		Docling: Docling{
			Binary:     defaultDoclingBinary,
			Pipeline:   defaultDoclingPipeline,
			Model:      defaultDoclingModel,
			Device:     defaultDoclingDevice,
			Threads:    defaultDoclingThreads,
			PDFBackend: defaultDoclingPDFBackend,
			OCREngine:  defaultDoclingOCREngine,
			ScratchDir: defaultDoclingScratchDir,
		},
		Workflow: Workflow{
			PollIntervalMS:    defaultWorkflowPollIntervalMS,
			MaxBackoffSeconds: defaultWorkflowMaxBackoffSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
