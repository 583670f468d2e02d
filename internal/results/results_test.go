package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"camtrap/internal/model"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "detections.json")
	batch := model.BatchResult{
		{File: "/cam/a.jpg", Detections: []model.DetectionRecord{
			{Category: "1", Confidence: 0.93, BBox: model.BBox{0.1, 0.2, 0.3, 0.4}},
		}},
		{File: "/cam/b.jpg"},
		{File: "/cam/c.jpg", Failure: "Failure image access"},
	}

	test.That(t, FileSerializer{Detector: "MDV5A"}.Serialize(batch, path), test.ShouldBeNil)

	got, info, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Detector, test.ShouldEqual, "MDV5A")
	test.That(t, info.FormatVersion, test.ShouldEqual, FormatVersion)
	test.That(t, got, test.ShouldHaveLength, 3)
	test.That(t, got[0], test.ShouldResemble, batch[0])
	test.That(t, got[2].Failure, test.ShouldEqual, "Failure image access")

	// the caller's batch is left untouched
	test.That(t, batch[1].Detections, test.ShouldBeNil)
}

func TestWrite_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.json")
	batch := model.BatchResult{{File: "x.jpg"}}
	test.That(t, Write(path, batch, Info{}), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)

	var raw map[string]interface{}
	test.That(t, json.Unmarshal(data, &raw), test.ShouldBeNil)
	test.That(t, raw["detection_categories"], test.ShouldResemble, map[string]interface{}{
		"1": "animal", "2": "person", "3": "vehicle",
	})
	images := raw["images"].([]interface{})
	first := images[0].(map[string]interface{})
	test.That(t, first["detections"], test.ShouldResemble, []interface{}{})
	test.That(t, first, test.ShouldNotContainKey, "failure")

	entries, err := os.ReadDir(filepath.Dir(path))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries, test.ShouldHaveLength, 1)
}

func TestRead_Errors(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte("{"), 0644), test.ShouldBeNil)
	_, _, err = Read(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to parse")
}
