package types

// WSScreenResponse carries one rendered frame of the recording screen.
type WSScreenResponse struct {
	Type   string `json:"type"` // "screen"
	Screen any    `json:"screen"`
}

// WSLevelsResponse is sent to clients with peak meter updates.
type WSLevelsResponse struct {
	Type      string  `json:"type"`       // "levels"
	PeakLeft  float64 `json:"peak_left"`  // Left peak in dBFS
	PeakRight float64 `json:"peak_right"` // Right peak in dBFS
	Clipped   bool    `json:"clipped"`    // Clip indicator is lit
}

// WSCommandResult is the standard response for command execution.
type WSCommandResult struct {
	Type    string           `json:"type"`            // "<command>_result"
	Success bool             `json:"success"`         // true if command succeeded
	Error   *ValidationError `json:"error,omitempty"` // Validation errors if failed
	Data    any              `json:"data,omitempty"`  // Optional response data
}

// WSTestResult is sent to clients after a test operation completes.
type WSTestResult struct {
	Type     string `json:"type"`            // Message type identifier
	TestType string `json:"test_type"`       // Type of test performed
	Success  bool   `json:"success"`         // Test succeeded
	Error    string `json:"error,omitempty"` // Error message if failed
}
