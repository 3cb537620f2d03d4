package dto

// HealthResponse represents a health check response
type HealthResponse struct {
	Success     bool `json:"success"`
	DataSources int  `json:"data_sources"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// ErrorBody is the classified failure of a request
type ErrorBody struct {
	Kind    string `json:"kind"`
	Engine  string `json:"engine,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ValidationErrorResponse represents a validation error response
type ValidationErrorResponse struct {
	Success bool          `json:"success"`
	Error   ErrorBody     `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}
