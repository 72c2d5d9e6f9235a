package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/VickramC07/BikeGuard/internal/video"
)

// ErrInference wraps every per-frame detector failure
var ErrInference = errors.New("inference failed")

// Box is a pixel-space bounding box with X1 < X2 and Y1 < Y2
type Box struct {
	X1, Y1, X2, Y2 int
}

// Valid reports whether the box has positive width and height
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Detection is a single detected object
type Detection struct {
	ClassID    int
	Confidence float64
	Box        Box
}

func (d Detection) String() string {
	return fmt.Sprintf("%s %.2f [%d,%d,%d,%d]", ClassName(d.ClassID), d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}

// Detector maps a frame to detections. Implementations may be slow.
type Detector interface {
	Infer(ctx context.Context, frame *video.Frame, classes ClassSet) ([]Detection, error)
}

// DetectorFunc adapts a function to Detector
type DetectorFunc func(ctx context.Context, frame *video.Frame, classes ClassSet) ([]Detection, error)

func (f DetectorFunc) Infer(ctx context.Context, frame *video.Frame, classes ClassSet) ([]Detection, error) {
	return f(ctx, frame, classes)
}

// ClassSet is an ordered set of class ids
type ClassSet struct {
	ids   []int
	index map[int]struct{}
}

// NewClassSet builds a set from ids; duplicates keep their first position
func NewClassSet(ids ...int) ClassSet {
	s := ClassSet{index: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Contains reports whether id is in the set
func (s ClassSet) Contains(id int) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns the ids in order
func (s ClassSet) IDs() []int {
	return append([]int(nil), s.ids...)
}

// Len returns the number of ids
func (s ClassSet) Len() int {
	return len(s.ids)
}

// Names returns the class names in order
func (s ClassSet) Names() []string {
	names := make([]string, len(s.ids))
	for i, id := range s.ids {
		names[i] = ClassName(id)
	}
	return names
}

// InferenceRequest is the body posted to the inference service
type InferenceRequest struct {
	Image               string  `json:"image"` // Base64-encoded JPEG image
	Model               string  `json:"model,omitempty"`
	Classes             []int   `json:"classes,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// BoundingBox is a detection as returned by the inference service
type BoundingBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

// InferenceResponse represents the response from the inference service
type InferenceResponse struct {
	BoundingBoxes   []BoundingBox `json:"bounding_boxes"`
	InferenceTimeMs float64       `json:"inference_time_ms"`
}

// InferenceStats summarizes requests made by a client
type InferenceStats struct {
	TotalInferences int     `json:"total_inferences"`
	Failures        int     `json:"failures"`
	TotalTimeMs     float64 `json:"total_time_ms"`
	AverageTimeMs   float64 `json:"average_time_ms"`
}
