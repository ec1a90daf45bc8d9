package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRotation is returned for rotations other than 0, 90, 180 and 270.
	// It indicates an integration error and is not retried.
	ErrInvalidRotation = errors.New("frame: invalid rotation")

	// ErrPlaneCount is returned when a frame does not carry three planes.
	ErrPlaneCount = errors.New("frame: expected 3 planes")
)

// PlaneOrder lists which source plane index fills each of the three slots of
// the packed buffer. Slot 0 is luma; slots 1 and 2 are chroma.
//
// The buffer is labelled YV12 (Y, then V, then U), but camera pipelines
// usually deliver planes as Y, U, V. PositionalPlaneOrder copies planes in
// index order regardless of what they hold; SwapChromaOrder produces true
// YV12 from Y/U/V input.
type PlaneOrder [3]int

var (
	PositionalPlaneOrder = PlaneOrder{0, 1, 2}
	SwapChromaOrder      = PlaneOrder{0, 2, 1}
)

// ParsePlaneOrder maps a config name to a PlaneOrder.
func ParsePlaneOrder(name string) (PlaneOrder, error) {
	switch name {
	case "", "positional":
		return PositionalPlaneOrder, nil
	case "swap_chroma":
		return SwapChromaOrder, nil
	default:
		return PlaneOrder{}, fmt.Errorf("frame: unknown plane order %q", name)
	}
}

// Converter packs a frame into a single buffer.
type Converter interface {
	Convert(f *Frame) (data []byte, lengths [3]int, err error)
}

// YV12Converter concatenates the three planes of a frame in Order.
type YV12Converter struct {
	Order PlaneOrder
}

// Convert copies the planes into one contiguous buffer. The returned slice
// never aliases frame memory.
func (c YV12Converter) Convert(f *Frame) ([]byte, [3]int, error) {
	var lengths [3]int
	if len(f.Planes) < 3 {
		return nil, lengths, fmt.Errorf("%w: got %d", ErrPlaneCount, len(f.Planes))
	}

	total := 0
	for slot, idx := range c.Order {
		if idx < 0 || idx > 2 {
			return nil, lengths, fmt.Errorf("frame: plane order index %d out of range", idx)
		}
		lengths[slot] = len(f.Planes[idx].Data)
		total += lengths[slot]
	}

	data := make([]byte, total)
	off := 0
	for _, idx := range c.Order {
		off += copy(data[off:], f.Planes[idx].Data)
	}
	return data, lengths, nil
}

// RotationToOrientation maps clockwise degrees to an Orientation.
func RotationToOrientation(degrees int) (Orientation, error) {
	switch degrees {
	case 0:
		return Rotation0, nil
	case 90:
		return Rotation90, nil
	case 180:
		return Rotation180, nil
	case 270:
		return Rotation270, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidRotation, degrees)
	}
}
