package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultJPEGQuality is used when callers pass a quality outside 1..100.
const DefaultJPEGQuality = 85

// EncodeJPEG turns a packed YV12 buffer into an upright JPEG image.
//
// Slot 1 of the buffer is read as Cr and slot 2 as Cb. When the chroma slots
// are not 4:2:0 sized (strided or interleaved camera planes), the luma slot
// alone is encoded as grayscale.
func EncodeJPEG(data []byte, lengths [3]int, width, height int, o Orientation, quality int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid size %dx%d", width, height)
	}
	if lengths[0]+lengths[1]+lengths[2] > len(data) {
		return nil, fmt.Errorf("frame: buffer shorter than plane lengths")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	img, err := decodeYV12(data, lengths, width, height)
	if err != nil {
		return nil, err
	}
	if o != Rotation0 {
		img = rotate(img, o)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("frame: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeYV12(data []byte, lengths [3]int, width, height int) (image.Image, error) {
	ySize := width * height
	if lengths[0] < ySize {
		return nil, fmt.Errorf("frame: luma plane has %d bytes, need %d", lengths[0], ySize)
	}
	luma := data[:lengths[0]]

	cw, ch := (width+1)/2, (height+1)/2
	if lengths[1] != cw*ch || lengths[2] != cw*ch {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		rowStride := lengths[0] / height
		for y := 0; y < height; y++ {
			copy(gray.Pix[y*width:(y+1)*width], luma[y*rowStride:y*rowStride+width])
		}
		return gray, nil
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	copy(img.Y, luma[:ySize])
	cr := data[lengths[0] : lengths[0]+lengths[1]]
	cb := data[lengths[0]+lengths[1] : lengths[0]+lengths[1]+lengths[2]]
	copy(img.Cr, cr)
	copy(img.Cb, cb)
	return img, nil
}

func rotate(src image.Image, o Orientation) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if o == Rotation180 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch o {
			case Rotation90:
				dst.Set(h-1-y, x, c)
			case Rotation180:
				dst.Set(w-1-x, h-1-y, c)
			case Rotation270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}
