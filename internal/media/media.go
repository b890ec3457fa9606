// Package media holds the data shared by the probe, scene and split
// packages: probed metadata, scene points, source validation and the
// error taxonomy of the split engine.
package media

import "strconv"

// MediaInfo is the probed metadata of a source file. Fields the prober
// could not read are left at their zero value.
type MediaInfo struct {
	Path       string  `json:"path"`
	Filename   string  `json:"filename"`
	Duration   float64 `json:"duration"` // seconds
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	Bitrate    int64   `json:"bitrate"` // bits/sec, container level
	Format     string  `json:"format"`
	Size       int64   `json:"size"` // bytes
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
}

// Resolution returns "WxH", or "unknown" when either side is missing.
func (m *MediaInfo) Resolution() string {
	if m.Width <= 0 || m.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(m.Width) + "x" + strconv.Itoa(m.Height)
}

// ScenePoint is one accepted scene change.
//
// Confidence is always 1.0 and Frame always 0: the showinfo diagnostic
// stream carries neither a score nor a reliable frame number.
type ScenePoint struct {
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
	Frame      int64   `json:"frame_number"`
}
