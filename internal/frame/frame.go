// Package frame holds camera frame types and the conversions the analyzer
// applies before handing pixel data to a recognition backend.
package frame

import "time"

// Plane is one channel of a YUV image, delivered as its own byte buffer.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// Frame is a single image delivered by a frame source.
//
// A Frame is owned by the source for the duration of one Analyze call.
// Consumers must copy anything they need to keep.
type Frame struct {
	Planes    []Plane
	Width     int
	Height    int
	Timestamp time.Time
	Seq       uint64
}

// Orientation is the rotation code understood by recognition backends.
type Orientation int

const (
	Rotation0 Orientation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Degrees returns the clockwise rotation in degrees.
func (o Orientation) Degrees() int {
	return int(o) * 90
}

// ImageFormat identifies the byte layout of a converted buffer.
type ImageFormat int

const (
	FormatYV12 ImageFormat = iota + 1
)

func (f ImageFormat) String() string {
	switch f {
	case FormatYV12:
		return "yv12"
	default:
		return "unknown"
	}
}
