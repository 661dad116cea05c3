package model

// VideoStream is one selectable video variant reported by inspection
type VideoStream struct {
	Resolution   string  `json:"resolution"`
	Height       int     `json:"height"`
	FilesizeMB   float64 `json:"filesize"`
	QualityLabel string  `json:"quality_label"`
}

// AudioStream is one selectable audio-only variant reported by inspection
type AudioStream struct {
	ABR        float64 `json:"abr"`
	FilesizeMB float64 `json:"filesize"`
}

// VideoInfo is the metadata returned by the info path
type VideoInfo struct {
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	Length       string        `json:"length"`
	Views        string        `json:"views"`
	Description  string        `json:"description"`
	ThumbnailURL string        `json:"thumbnail_url"`
	PublishDate  string        `json:"publish_date"`
	VideoStreams []VideoStream `json:"video_streams"`
	AudioStreams []AudioStream `json:"audio_streams"`
}
