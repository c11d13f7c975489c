package peer

import (
	"github.com/pion/webrtc/v3"

	"playmesh/pkg/config"
)

// WebRTCConfiguration maps the configured ICE servers onto a pion
// configuration for the session's peer connections.
func WebRTCConfiguration(cfg *config.Config) webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}
}
