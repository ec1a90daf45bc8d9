package extractor

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bdougie/mira/internal/frame"
)

// FrameReader splits a raw yuv420p byte stream into three-plane frames.
type FrameReader struct {
	r      io.Reader
	width  int
	height int
	seq    uint64
	now    func() time.Time
}

// NewFrameReader reads width x height yuv420p frames from r.
func NewFrameReader(r io.Reader, width, height int) (*FrameReader, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("extractor: invalid frame size %dx%d", width, height)
	}
	return &FrameReader{r: r, width: width, height: height, now: time.Now}, nil
}

// FrameSize returns the byte size of one yuv420p frame.
func FrameSize(width, height int) int {
	cw, ch := (width+1)/2, (height+1)/2
	return width*height + 2*cw*ch
}

// Next reads one frame. It returns io.EOF at a clean frame boundary and
// io.ErrUnexpectedEOF when the stream ends mid-frame.
func (fr *FrameReader) Next() (*frame.Frame, error) {
	buf := make([]byte, FrameSize(fr.width, fr.height))
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	ySize := fr.width * fr.height
	cw := (fr.width + 1) / 2
	cSize := cw * ((fr.height + 1) / 2)
	fr.seq++
	return &frame.Frame{
		Planes: []frame.Plane{
			{Data: buf[:ySize], RowStride: fr.width, PixelStride: 1},
			{Data: buf[ySize : ySize+cSize], RowStride: cw, PixelStride: 1},
			{Data: buf[ySize+cSize:], RowStride: cw, PixelStride: 1},
		},
		Width:     fr.width,
		Height:    fr.height,
		Timestamp: fr.now(),
		Seq:       fr.seq,
	}, nil
}
