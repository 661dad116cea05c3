package model

// ProgressCapability describes how much progress a collaborator can report
type ProgressCapability string

const (
	// ProgressNone reports only 0 and 100
	ProgressNone ProgressCapability = "none"
	// ProgressCoarse reports periodic estimates
	ProgressCoarse ProgressCapability = "coarse"
	// ProgressFine reports byte-accurate progress
	ProgressFine ProgressCapability = "fine"
)

// FetchSpec tells the download collaborator what to fetch and where to put it
type FetchSpec struct {
	URL         string
	Type        MediaType
	Format      string // format selector expression
	MergeFormat string // container for merged streams, empty when not merging
	AudioFormat string // codec to extract audio into, empty for video
	OutputDir   string
	OutputStem  string // file name without extension, unique per job
}

// FetchResult is what the collaborator produced
type FetchResult struct {
	Path  string
	Title string
}

// MediaFormat is one raw format reported by the inspection collaborator
type MediaFormat struct {
	ID            string
	Ext           string
	Resolution    string
	Height        int
	VCodec        string
	ACodec        string
	ABR           float64
	FilesizeBytes int64
}

// HasVideo reports whether the format carries a video track
func (f MediaFormat) HasVideo() bool {
	return f.VCodec != "none"
}

// IsAudioOnly reports whether the format carries audio and no video
func (f MediaFormat) IsAudioOnly() bool {
	return f.ACodec != "none" && f.VCodec == "none"
}

// MediaMetadata is the raw inspection result before the selection policy applies
type MediaMetadata struct {
	Title           string
	Author          string
	DurationSeconds float64
	ViewCount       int64
	Description     string
	ThumbnailURL    string
	UploadDate      string // YYYYMMDD as reported upstream
	Formats         []MediaFormat
}
