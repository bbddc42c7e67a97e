package types

type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformSpotify   Platform = "spotify"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformPinterest Platform = "pinterest"
	PlatformThreads   Platform = "threads"
	PlatformGeneric   Platform = "generic"
)

type ContentKind string

const (
	KindVideo    ContentKind = "video"
	KindReel     ContentKind = "reel"
	KindPost     ContentKind = "post"
	KindCarousel ContentKind = "carousel"
	KindTrack    ContentKind = "track"
	KindImage    ContentKind = "image"
	KindUnknown  ContentKind = "unknown"
)

// PlatformMatch is the classification of a source URL. It is derived
// deterministically and never changes after creation.
type PlatformMatch struct {
	Platform Platform    `json:"platform"`
	Kind     ContentKind `json:"content_kind"`
}

type RequestedKind string

const (
	RequestVideo RequestedKind = "video"
	RequestAudio RequestedKind = "audio"
	RequestImage RequestedKind = "image"
	RequestAuto  RequestedKind = "auto"
)

// MediaRequest is created once per inbound message and discarded after the
// orchestration cycle completes.
type MediaRequest struct {
	SourceURL     string        `json:"source_url"`
	RequesterID   string        `json:"requester_id"`
	RequestedKind RequestedKind `json:"requested_kind"`
	// Quality pins a specific label when the user already picked one from
	// the quality menu; empty means best-under-policy.
	Quality string `json:"quality,omitempty"`
}

// Rendition is one downloadable encoding reported by an extraction backend.
// The core only ranks and filters renditions; it never constructs them.
type Rendition struct {
	Label         string `json:"label"`
	EstimatedSize int64  `json:"estimated_size_bytes,omitempty"` // 0 = unknown
	Container     string `json:"container"`
	// FormatRef is opaque to the core; backends use it to re-identify the
	// stream on fetch (a yt-dlp format selector, a gallery-dl range, ...).
	FormatRef string        `json:"format_ref"`
	Kind      RequestedKind `json:"kind"`
}

type OutcomeStatus string

const (
	StatusSuccess      OutcomeStatus = "success"
	StatusTooLarge     OutcomeStatus = "too_large"
	StatusAuthRequired OutcomeStatus = "auth_required"
	StatusTimeout      OutcomeStatus = "timeout"
	StatusNotFound     OutcomeStatus = "not_found"
	StatusBackendError OutcomeStatus = "backend_error"
)

// DownloadOutcome is terminal: produced once per orchestration attempt
// sequence and never mutated after return. On success the caller takes
// ownership of the file at LocalPath.
type DownloadOutcome struct {
	Status          OutcomeStatus `json:"status"`
	LocalPath       string        `json:"local_path,omitempty"`
	ChosenRendition *Rendition    `json:"chosen_rendition,omitempty"`
	Title           string        `json:"title,omitempty"`
	Message         string        `json:"message"`
}

type SessionMode string

const (
	ModeIdle            SessionMode = "idle"
	ModeAwaitingQuality SessionMode = "awaiting_quality"
	ModeAwaitingQRText  SessionMode = "awaiting_qr_text"
)

// SessionState is keyed by user ID in the session store and overwritten on
// every mode transition.
type SessionState struct {
	UserID         string        `json:"user_id"`
	Mode           SessionMode   `json:"mode"`
	PendingRequest *MediaRequest `json:"pending_request,omitempty"`
}

// MediaInfo is the cached enumeration metadata for a URL, used to rebuild
// the quality menu without re-running the extractor.
type MediaInfo struct {
	Title      string      `json:"title"`
	Duration   int64       `json:"duration"`
	Uploader   string      `json:"uploader"`
	Platform   Platform    `json:"platform"`
	Renditions []Rendition `json:"renditions"`
}
