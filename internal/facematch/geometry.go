package facematch

// BBox is a face region [x1, y1, x2, y2]. The extractor reports pixels.
type BBox [4]float64

// Width returns x2 - x1.
func (b BBox) Width() float64 {
	return b[2] - b[0]
}

// Height returns y2 - y1.
func (b BBox) Height() float64 {
	return b[3] - b[1]
}

// Area returns the box area, 0 for degenerate boxes.
func (b BBox) Area() float64 {
	if b.Width() <= 0 || b.Height() <= 0 {
		return 0
	}
	return b.Width() * b.Height()
}

// IsZero reports whether no region was recorded.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// BBoxFromSlice converts a wire bbox. Anything but 4 values gives the zero box.
func BBoxFromSlice(values []float64) BBox {
	if len(values) != 4 {
		return BBox{}
	}
	return BBox{values[0], values[1], values[2], values[3]}
}

// IoU calculates Intersection over Union with other. Both boxes must be in
// the same coordinate system.
func (b BBox) IoU(other BBox) float64 {
	x1 := max(b[0], other[0])
	y1 := max(b[1], other[1])
	x2 := min(b[2], other[2])
	y2 := min(b[3], other[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + other.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// SuppressOverlapping drops detections whose region overlaps an earlier,
// higher-scoring detection by at least iouThreshold. Survivors keep their
// original order.
func SuppressOverlapping(dets []Detection, iouThreshold float64) []Detection {
	keep := make([]bool, len(dets))
	for i := range dets {
		keep[i] = true
	}
	for i := range dets {
		if !keep[i] || dets[i].Region.IsZero() {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if !keep[j] || dets[j].Region.IsZero() {
				continue
			}
			if dets[i].Region.IoU(dets[j].Region) < iouThreshold {
				continue
			}
			if dets[j].DetScore > dets[i].DetScore {
				keep[i] = false
				break
			}
			keep[j] = false
		}
	}

	out := make([]Detection, 0, len(dets))
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}
