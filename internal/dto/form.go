package dto

// ThresholdRequest sets the threshold either from the slider (Value) or from
// the typed entry (Text). Text wins when both are set.
type ThresholdRequest struct {
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// DirsRequest selects the input and/or output directory. Empty fields are left unchanged.
type DirsRequest struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
}

// ErrorResponse is returned with every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
