package detector

import "context"

// Detector is the local face-presence probe run on every sampled frame
// before anything is sent to the backend.
type Detector interface {
	// Detect returns the faces found in the image. An empty slice means the
	// frame is face-free; an error means the probe itself failed.
	Detect(ctx context.Context, image []byte) ([]Face, error)
}

// Face is one detected face.
type Face struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// BoundingBox is the face area in the image.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
