package models

// APIError is the error body shape the Neon API returns on failures.
// Decoding is best effort; the verbatim body is preserved either way.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
