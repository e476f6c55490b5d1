package server

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

// StatusResponse is the JSON body returned for refresh administration
// requests.
type StatusResponse struct {
	Success bool `json:"success"`
}
