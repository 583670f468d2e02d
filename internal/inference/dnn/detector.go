// Package dnn runs OpenCV DNN object detectors as an inference.Detector.
package dnn

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"camtrap/internal/inference"
	"camtrap/internal/logger"
	"camtrap/internal/model"
)

// MinConfidence is the lowest score kept from the network output. Rendering
// applies the user's threshold later, so the results file keeps weak detections.
const MinConfidence = 0.005

// cocoCategories folds COCO class ids of an SSD model into camera-trap categories.
var cocoCategories = map[int]string{
	1:  model.CategoryPerson,
	2:  model.CategoryVehicle, // bicycle
	3:  model.CategoryVehicle, // car
	4:  model.CategoryVehicle, // motorcycle
	6:  model.CategoryVehicle, // bus
	7:  model.CategoryVehicle, // train
	8:  model.CategoryVehicle, // truck
	16: model.CategoryAnimal,  // bird
	17: model.CategoryAnimal,  // cat
	18: model.CategoryAnimal,  // dog
	19: model.CategoryAnimal,  // horse
	20: model.CategoryAnimal,  // sheep
	21: model.CategoryAnimal,  // cow
	22: model.CategoryAnimal,  // elephant
	23: model.CategoryAnimal,  // bear
	24: model.CategoryAnimal,  // zebra
	25: model.CategoryAnimal,  // giraffe
}

// Detector runs an OpenCV DNN object detection model (SSD output layout).
type Detector struct {
	net        gocv.Net
	mu         sync.Mutex // gocv.Net is not safe for concurrent Forward calls
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetector loads the network from modelPath and configPath.
func NewDetector(modelPath, configPath string, logger *logger.Logger) (*Detector, error) {
	d := &Detector{
		modelPath:  modelPath,
		configPath: configPath,
		logger:     logger,
	}
	if err := d.initializeNet(); err != nil {
		return nil, err
	}
	return d, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (d *Detector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	if _, err := os.Stat(d.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", d.configPath)
	}

	net := gocv.ReadNet(d.modelPath, d.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.logger.Info("Detection network initialized from %s", d.modelPath)
	return nil
}

// Detect implements inference.Detector. Boxes are returned normalized to the image size.
func (d *Detector) Detect(ctx context.Context, path string) ([]model.DetectionRecord, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, inference.ErrImageAccess)
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	detections := []model.DetectionRecord{}
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence < MinConfidence {
			continue
		}
		category, ok := cocoCategories[int(rows.GetFloatAt(i, 1))]
		if !ok {
			continue
		}

		left := clamp01(float64(rows.GetFloatAt(i, 3)))
		top := clamp01(float64(rows.GetFloatAt(i, 4)))
		right := clamp01(float64(rows.GetFloatAt(i, 5)))
		bottom := clamp01(float64(rows.GetFloatAt(i, 6)))

		detections = append(detections, model.DetectionRecord{
			Category:   category,
			Confidence: confidence,
			BBox:       model.BBox{left, top, right - left, bottom - top},
		})
	}

	return detections, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
