package collector

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/siegeai/autodoc/infer"
)

// Observation is one served request and the response it got.
type Observation struct {
	ID string

	// Request supplies the method, headers and cookies. Its body is not read.
	Request *http.Request

	// Template is the route template that matched the request, empty when
	// unknown.
	Template string

	// Payload is the merged query and body input of the request.
	Payload map[string]any

	Response infer.Response
}

func NewObservation(r *http.Request, template string, payload map[string]any, res infer.Response) *Observation {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Observation{
		ID:       uuid.NewString(),
		Request:  r,
		Template: template,
		Payload:  payload,
		Response: res,
	}
}
