package fl

import "encoding/json"

const (
	AnnounceTopicTemplate = "channels/%s/messages/control/client/create"
	AliveTopicTemplate    = "channels/%s/messages/control/client/alive"
	OfflineTopicTemplate  = "channels/%s/messages/control/client/offline"
	ResultsTopicTemplate  = "channels/%s/messages/control/client/results"
	// RequestTopicTemplate is formatted with the channel and the client id.
	RequestTopicTemplate = "channels/%s/messages/control/client/%s/request"
)

// Methods a coordinator can invoke on a remote client.
const (
	MethodGetProperties = "get_properties"
	MethodGetParameters = "get_parameters"
	MethodFit           = "fit"
	MethodEvaluate      = "evaluate"
)

// Request is published by the coordinator to a single client.
// Parameters travel in their canonical CBOR form.
type Request struct {
	RequestID  string `json:"request_id"`
	ClientID   string `json:"client_id"`
	Method     string `json:"method"`
	Parameters []byte `json:"parameters,omitempty"`
	Config     Config `json:"config,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	RequestID  string            `json:"request_id"`
	ClientID   string            `json:"client_id"`
	Method     string            `json:"method"`
	Parameters []byte            `json:"parameters,omitempty"`
	NumSamples int               `json:"num_samples,omitempty"`
	Loss       float64           `json:"loss,omitempty"`
	Metrics    Metrics           `json:"metrics,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Announcement is published by a client when it joins or heartbeats.
type Announcement struct {
	ClientID   string            `json:"client_id"`
	Properties map[string]string `json:"properties,omitempty"`
}

// DecodeMessage converts a decoded MQTT payload into a typed message.
func DecodeMessage(msg map[string]any, v any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

// ToMessage converts a typed message into the generic MQTT payload form.
func ToMessage(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return msg, nil
}
