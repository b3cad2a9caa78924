// Package rtc builds pion peer connections for calls.
package rtc

import (
	"fmt"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"

	"github.com/BioHazard786/Warpcall/internal/config"
)

// NewAPI builds a pion API with the default codecs and interceptors. Pion's
// own logs go to logger.
func NewAPI(logger *slog.Logger) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{
		LoggerFactory: LoggerFactory{Logger: logger},
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(se),
	), nil
}

// Configuration returns the ICE setup for cfg. ICE is restricted to TURN when
// relay is forced or the host looks like it sits behind a VPN or CGNAT.
func Configuration(cfg *config.Client, detectRelay func() bool) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || (detectRelay != nil && detectRelay())) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewPeerConnection creates a peer connection that receives one audio and one
// video track. Local tracks added later reuse these transceivers.
func NewPeerConnection(api *webrtc.API, cfg *config.Client) (*webrtc.PeerConnection, error) {
	return newPeerConnection(api, Configuration(cfg, ShouldForceRelay))
}

func newPeerConnection(api *webrtc.API, conf webrtc.Configuration) (*webrtc.PeerConnection, error) {
	pc, err := api.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return nil, multierr.Combine(fmt.Errorf("add %s transceiver: %w", kind, err), pc.Close())
		}
	}
	return pc, nil
}
