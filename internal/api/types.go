package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MQTTConfigResponse from POST /home/getMqttConfig/
type MQTTConfigResponse struct {
	Success bool     `json:"success"`
	Host    string   `json:"host"`
	Port    FlexPort `json:"port"`
}

// SuccessResponse is the generic {"success": bool} answer of admin endpoints.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// FlexPort accepts a port encoded as a JSON number or a numeric string.
type FlexPort int

// UnmarshalJSON implements json.Unmarshaler.
func (p *FlexPort) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("port %q is not a number", s)
		}
		*p = FlexPort(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	*p = FlexPort(n)
	return nil
}

// brokerEndpoint is the validated form of a successful MQTTConfigResponse.
type brokerEndpoint struct {
	Host string `validate:"required,hostname_rfc1123|ip"`
	Port int    `validate:"min=1,max=65535"`
}
