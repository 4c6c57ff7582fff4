package models

// DefectAnalysisRequest represents a request for bright pixel analysis.
// Unset thresholds fall back to the service defaults.
type DefectAnalysisRequest struct {
	URL        string          `json:"url" binding:"required"`
	Gain       float64         `json:"gain"`
	Gains      map[int]float64 `json:"gains,omitempty"` // per amplifier, e-/DN
	Ethresh    *float64        `json:"ethresh,omitempty"`
	Colthresh  *int            `json:"colthresh,omitempty"`
	MaskPlane  string          `json:"mask_plane,omitempty"`
	SensorID   string          `json:"sensor_id,omitempty"`
	BiasMethod string          `json:"bias_method,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HistoryResponse lists the analyses of one sensor, newest first
type HistoryResponse struct {
	SensorID string            `json:"sensor_id"`
	Analyses []AnalysisSummary `json:"analyses"`
}
