// Package api provides the HTTP client for the assistant's web interface.
//
// Endpoints used by the bridge:
//   - POST /home/getMqttConfig/                broker connection parameters
//   - POST /admin/acceptAliceConfigUpdate/     apply pending skill config changes
//   - POST /admin/refuseAliceConfigUpdate/     discard pending skill config changes
//
// The client implements connection.ConfigProvider.
package api
