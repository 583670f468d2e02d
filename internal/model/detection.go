package model

import "fmt"

// Detection category codes used by the camera-trap detector.
const (
	CategoryAnimal  = "1"
	CategoryPerson  = "2"
	CategoryVehicle = "3"
)

// Categories maps category codes to their human-readable names.
var Categories = map[string]string{
	CategoryAnimal:  "animal",
	CategoryPerson:  "person",
	CategoryVehicle: "vehicle",
}

// CategoryName returns the readable name for a category code.
func CategoryName(code string) string {
	if name, ok := Categories[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%s)", code)
}

// BBox is a normalized box: x_left, y_top, width, height, each in [0, 1].
type BBox [4]float64

// DetectionRecord represents one detected object within an image.
type DetectionRecord struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"conf"`
	BBox       BBox    `json:"bbox"`
}

// ImageResult holds the detections for a single image.
type ImageResult struct {
	File       string            `json:"file"`
	Detections []DetectionRecord `json:"detections"`
	Failure    string            `json:"failure,omitempty"`
}

// BatchResult is the full output of one detection run. It is never mutated
// after the inference step returns it.
type BatchResult []ImageResult

// WorkChunk is a contiguous slice of a BatchResult assigned to one worker.
type WorkChunk []ImageResult
