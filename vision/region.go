// Package vision holds the frame geometry used by the expression detector.
// It works on plain image.Rectangle values and has no OpenCV dependency.
package vision

import "image"

// MouthRegion derives the mouth area of a detected face: the middle half of
// the face horizontally and its bottom third vertically, clipped to the frame.
func MouthRegion(face image.Rectangle, frameW, frameH int) image.Rectangle {
	w := face.Dx()
	h := face.Dy()

	x := face.Min.X + w/4
	y := face.Min.Y + 2*h/3
	mw := w / 2
	mh := h / 3

	x = max(0, x)
	y = max(0, y)
	mw = min(mw, frameW-x)
	mh = min(mh, frameH-y)

	if mw <= 0 || mh <= 0 {
		return image.Rectangle{}
	}

	return image.Rect(x, y, x+mw, y+mh)
}

// MouthRegions returns one mouth region per face, in face order. Faces whose
// region falls outside the frame yield an empty rectangle.
func MouthRegions(faces []image.Rectangle, frameW, frameH int) []image.Rectangle {
	regions := make([]image.Rectangle, 0, len(faces))
	for _, face := range faces {
		regions = append(regions, MouthRegion(face, frameW, frameH))
	}
	return regions
}

// ExceedsThreshold reports whether any difference is strictly above threshold.
func ExceedsThreshold(diffs []float64, threshold float64) bool {
	for _, d := range diffs {
		if d > threshold {
			return true
		}
	}
	return false
}

// SameSize reports whether two frames share dimensions. An empty frame never
// matches a non-empty one.
func SameSize(aW, aH, bW, bH int) bool {
	return aW == bW && aH == bH
}
