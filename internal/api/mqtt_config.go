package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/alice-bridge/internal/model"
)

// ErrParametersUnavailable is wrapped by every FetchConnectionParameters failure.
var ErrParametersUnavailable = errors.New("broker parameters unavailable")

const mqttConfigPath = "/home/getMqttConfig/"

// FetchConnectionParameters asks the web interface where the broker lives.
// Transport failures and a {"success": false} answer are reported the same way.
func (c *Client) FetchConnectionParameters(ctx context.Context) (model.ConnectionParameters, error) {
	var resp MQTTConfigResponse
	if err := c.post(ctx, mqttConfigPath, &resp); err != nil {
		return model.ConnectionParameters{}, fmt.Errorf("%w: %w", ErrParametersUnavailable, err)
	}

	if !resp.Success {
		return model.ConnectionParameters{}, fmt.Errorf("%w: interface reported failure", ErrParametersUnavailable)
	}

	endpoint := brokerEndpoint{Host: resp.Host, Port: int(resp.Port)}
	if err := c.validate.Struct(endpoint); err != nil {
		return model.ConnectionParameters{}, fmt.Errorf("%w: invalid endpoint: %w", ErrParametersUnavailable, err)
	}

	return model.ConnectionParameters{Host: endpoint.Host, Port: endpoint.Port}, nil
}
