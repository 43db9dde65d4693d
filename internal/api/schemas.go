package api

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
	Source  string `json:"source,omitempty"`
}

type OpenRequest struct {
	Source    string  `json:"source"`
	Redetect  bool    `json:"redetect"`
	Threshold float64 `json:"threshold,omitempty"`
}

type FrameRequest struct {
	Frame *int `json:"frame"`
}

type ShotPatchRequest struct {
	Start    *int  `json:"start,omitempty"`
	End      *int  `json:"end,omitempty"`
	Enabled  *bool `json:"enabled,omitempty"`
	Ignored  *bool `json:"ignored,omitempty"`
	NewStart *int  `json:"new_start,omitempty"`
}

type PrefixRequest struct {
	Prefix string `json:"prefix"`
}

type RetimeRequest struct {
	Frame      int  `json:"frame"`
	Sequential bool `json:"sequential"`
}

type NavigateResponse struct {
	Frame int    `json:"frame"`
	Shot  string `json:"shot"`
	Prev  *int   `json:"prev,omitempty"`
	Next  *int   `json:"next,omitempty"`
}

// ExportRequest fields left out fall back to the export section of the config.
type ExportRequest struct {
	Dir            string `json:"dir,omitempty"`
	Thumbnails     *bool  `json:"thumbnails,omitempty"`
	Movies         *bool  `json:"movies,omitempty"`
	Audio          *bool  `json:"audio,omitempty"`
	EDL            *bool  `json:"edl,omitempty"`
	OTIO           *bool  `json:"otio,omitempty"`
	FCPXML         *bool  `json:"fcp_xml,omitempty"`
	ShotList       *bool  `json:"shot_list,omitempty"`
	ThumbnailWidth *int   `json:"thumbnail_width,omitempty"`
}

type ExportResponse struct {
	Dir        string   `json:"dir"`
	Thumbnails int      `json:"thumbnails"`
	Movies     int      `json:"movies"`
	Audio      int      `json:"audio"`
	Timelines  []string `json:"timelines"`
	Errors     int      `json:"errors"`
}
