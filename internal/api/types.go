package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DocumentRef identifies a queued or in-flight document.
type DocumentRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Configuration echoes the settings the daemon runs with.
type Configuration struct {
	TagName             string `json:"tagName"`
	TagID               *int64 `json:"tagId"`
	CheckInterval       int    `json:"checkInterval"`
	DoclingPipeline     string `json:"doclingPipeline"`
	DoclingModel        string `json:"doclingModel"`
	DoclingDevice       string `json:"doclingDevice"`
	DoclingThreads      int    `json:"doclingThreads"`
	DoclingPDFBackend   string `json:"doclingPdfBackend"`
	DoclingOCREngine    string `json:"doclingOcrEngine"`
	// DoclingExtraArgs is the configured string before shell splitting.
	DoclingExtraArgs    string `json:"doclingExtraArgs"`
	MaxAttempts         int    `json:"maxAttempts"`
	RetryBackoffSeconds int    `json:"retryBackoffSeconds"`
}

// WorkflowStatus summarizes poll and worker activity.
type WorkflowStatus struct {
	State         string `json:"state"`
	LastPoll      string `json:"lastPoll,omitempty"`
	InFlightSince string `json:"inFlightSince,omitempty"`
	Succeeded     int64  `json:"succeeded"`
	Failed        int64  `json:"failed"`
	LastError     string `json:"lastError,omitempty"`
}

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	QueueLength     int            `json:"queueLength"`
	IsProcessing    bool           `json:"isProcessing"`
	InFlight        *DocumentRef   `json:"inFlight"`
	Configuration   Configuration  `json:"configuration"`
	ProcessingQueue []DocumentRef  `json:"processingQueue"`
	Workflow        WorkflowStatus `json:"workflow"`
}

// QueueResponse is the payload of GET /queue.
type QueueResponse struct {
	Queue []DocumentRef `json:"queue"`
}

// AttemptRecord is a retry ledger entry in transport form.
type AttemptRecord struct {
	DocumentID    int64  `json:"documentId"`
	Title         string `json:"title"`
	Failures      int    `json:"failures"`
	LastError     string `json:"lastError"`
	ErrorKind     string `json:"errorKind,omitempty"`
	FirstFailedAt string `json:"firstFailedAt,omitempty"`
	LastFailedAt  string `json:"lastFailedAt,omitempty"`
	Verdict       string `json:"verdict"`
	NextAttemptAt string `json:"nextAttemptAt,omitempty"`
}

// AttemptsResponse is the payload of GET /attempts.
type AttemptsResponse struct {
	Attempts []AttemptRecord `json:"attempts"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
