package handlers

import (
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/call-signaling/config"
)

// ICEServersFromConfig builds the STUN/TURN list handed to browsers.
// TURN entries carry long-term password credentials.
func ICEServersFromConfig(cfg config.ICEConfig) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNURLs})
	}
	if len(cfg.TURNURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           cfg.TURNURLs,
			Username:       cfg.TURNUsername,
			Credential:     cfg.TURNCredential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}
