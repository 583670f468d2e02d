package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Messages shown when a typed threshold is rejected.
var (
	ErrInvalidNumber = errors.New("Please enter a valid number")
	ErrOutOfRange    = errors.New("Value must be between 0 and 1")
)

var (
	// ErrControlsDisabled is returned for edits attempted while a run is active.
	ErrControlsDisabled = errors.New("controls are disabled while a run is active")
	// ErrStopped is returned once the loop no longer runs.
	ErrStopped = errors.New("ui loop stopped")
)

// State is a snapshot of the form.
type State struct {
	Threshold       float64 `json:"threshold"`
	ThresholdText   string  `json:"threshold_text"`
	InputDir        string  `json:"input_dir"`
	OutputDir       string  `json:"output_dir"`
	ControlsEnabled bool    `json:"controls_enabled"`
	Console         string  `json:"console,omitempty"`
}

// View displays the form. Its methods are called on the loop goroutine.
type View interface {
	Render(state State)
	AppendLog(text string)
	ShowError(title, message string)
}

type nopView struct{}

func (nopView) Render(State)              {}
func (nopView) AppendLog(string)          {}
func (nopView) ShowError(string, string) {}

// Form is the annotator's input form. Its state is owned by the loop; the
// exported methods are safe to call from any goroutine except the loop's own.
// Disable, Enable and AppendLog only post and may be called from anywhere.
type Form struct {
	loop    *Loop
	view    View
	backlog int
	state   State
}

// NewForm creates a form with the given default threshold. The console keeps
// at most backlog bytes; zero or less keeps everything.
func NewForm(loop *Loop, threshold float64, backlog int) *Form {
	return &Form{
		loop:    loop,
		view:    nopView{},
		backlog: backlog,
		state: State{
			Threshold:       threshold,
			ThresholdText:   formatThreshold(threshold),
			ControlsEnabled: true,
		},
	}
}

// SetView attaches the view that receives form updates.
func (f *Form) SetView(v View) {
	f.loop.Post(func() {
		f.view = v
		f.view.Render(f.state)
	})
}

// Snapshot returns the current state.
func (f *Form) Snapshot() (State, error) {
	var s State
	if !f.loop.Do(func() { s = f.state }) {
		return State{}, ErrStopped
	}
	return s, nil
}

// SetThreshold sets the threshold from the slider. The entry text follows it.
func (f *Form) SetThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return ErrOutOfRange
	}
	return f.edit(func() error {
		f.state.Threshold = v
		f.state.ThresholdText = formatThreshold(v)
		return nil
	})
}

// SubmitThresholdText parses a typed threshold. A rejected value is reported
// to the view and the entry reverts to the last valid threshold.
func (f *Form) SubmitThresholdText(text string) (float64, error) {
	var value float64
	err := f.edit(func() error {
		v, err := parseThreshold(text)
		if err != nil {
			f.state.ThresholdText = formatThreshold(f.state.Threshold)
			f.view.ShowError("Invalid Input", err.Error())
			return err
		}
		f.state.Threshold = v
		f.state.ThresholdText = formatThreshold(v)
		value = v
		return nil
	})
	return value, err
}

// SetInputDir selects the input directory and suggests an output directory
// next to it. An empty dir is ignored, like a cancelled picker.
func (f *Form) SetInputDir(dir string) error {
	if dir == "" {
		return nil
	}
	return f.edit(func() error {
		f.state.InputDir = dir
		f.state.OutputDir = SuggestOutputDir(dir)
		return nil
	})
}

// SetOutputDir selects the output directory. An empty dir is ignored.
func (f *Form) SetOutputDir(dir string) error {
	if dir == "" {
		return nil
	}
	return f.edit(func() error {
		f.state.OutputDir = dir
		return nil
	})
}

// Disable greys out every control.
func (f *Form) Disable() {
	f.loop.Post(func() { f.setEnabled(false) })
}

// Enable re-enables every control.
func (f *Form) Enable() {
	f.loop.Post(func() { f.setEnabled(true) })
}

// AppendLog appends text to the console.
func (f *Form) AppendLog(text string) {
	f.loop.Post(func() {
		f.state.Console = trimBacklog(f.state.Console+text, f.backlog)
		f.view.AppendLog(text)
	})
}

func (f *Form) setEnabled(enabled bool) {
	if f.state.ControlsEnabled == enabled {
		return
	}
	f.state.ControlsEnabled = enabled
	f.view.Render(f.state)
}

// edit runs fn on the loop when controls are enabled and re-renders the view.
func (f *Form) edit(fn func() error) error {
	var err error
	ok := f.loop.Do(func() {
		if !f.state.ControlsEnabled {
			err = ErrControlsDisabled
			return
		}
		err = fn()
		f.view.Render(f.state)
	})
	if !ok {
		return ErrStopped
	}
	return err
}

// SuggestOutputDir returns <parent>/<base>_detections for an input directory.
func SuggestOutputDir(inputDir string) string {
	clean := filepath.Clean(inputDir)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+"_detections")
}

func parseThreshold(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrInvalidNumber
	}
	v, err := cast.ToFloat64E(text)
	if err != nil {
		return 0, ErrInvalidNumber
	}
	// inf and nan parse as numbers but are never in range
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, ErrOutOfRange
	}
	return v, nil
}

func formatThreshold(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// trimBacklog keeps the last limit bytes of s, starting at a line boundary
// when one is available.
func trimBacklog(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	s = s[len(s)-limit:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
