package domain

import "time"

const (
	ConversionStatusSucceeded = "succeeded"
	ConversionStatusFailed    = "failed"
)

// Conversion is the archived record of one /convert request.
type Conversion struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Status       string    `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Policy       string    `json:"policy"`
	SourceWidth  int       `json:"source_width,omitempty"`
	SourceHeight int       `json:"source_height,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	SourceBytes  int       `json:"source_bytes"`
	OutputBytes  int       `json:"output_bytes,omitempty"`
	ObjectKey    string    `json:"object_key,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
