package models

// HealthCheckResponse is the body of the /health endpoint
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// ErrorResponse is the generic failure body for owner-facing endpoints
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
