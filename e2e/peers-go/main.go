// Command peers-go is a self-contained end-to-end probe: two local WebRTC
// peers exchange their SDP and ICE candidates through a running relay and
// verify that a data channel opens in both directions.
//
// Usage:
//
//	RELAY_WS_URL=ws://127.0.0.1:8080/ws go run ./e2e/peers-go
//
// Prints "E2E OK" and exits 0 on success.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

type envelope struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data,omitempty"`
	AckID *int64            `json:"ackId,omitempty"`
}

type signalMessage struct {
	Sender       string          `json:"sender"`
	RemoteUserID string          `json:"remoteUserId,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

// body is the payload both peers understand.
type body struct {
	NewParticipationRequest bool                       `json:"newParticipationRequest,omitempty"`
	SDP                     *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate               *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

const messageEvent = "signaling-message"

type peer struct {
	userID string
	ws     *websocket.Conn
	pc     *webrtc.PeerConnection

	opened chan struct{}
}

func newPeer(relayURL, userID string, api *webrtc.API) (*peer, error) {
	ws, _, err := websocket.DefaultDialer.Dial(relayURL+"?userid="+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay as %s: %w", userID, err)
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &peer{userID: userID, ws: ws, pc: pc, opened: make(chan struct{}, 1)}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		p.send(p.remoteID(), body{Candidate: &init})
	})

	return p, nil
}

func (p *peer) remoteID() string {
	if p.userID == "offerer" {
		return "answerer"
	}
	return "offerer"
}

func (p *peer) send(remote string, b body) {
	payload, err := json.Marshal(b)
	if err != nil {
		fatalf("marshal body: %v", err)
	}
	msg, err := json.Marshal(signalMessage{Sender: p.userID, RemoteUserID: remote, Message: payload})
	if err != nil {
		fatalf("marshal message: %v", err)
	}
	frame, err := json.Marshal(envelope{Event: messageEvent, Data: []json.RawMessage{msg}})
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := p.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		fatalf("%s: write: %v", p.userID, err)
	}
}

// pump reads relay frames and feeds SDP and candidates into the peer
// connection. Frames that are not signaling payloads (user-connected and
// friends) are ignored.
func (p *peer) pump() {
	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event != messageEvent || len(env.Data) == 0 {
			continue
		}
		var msg signalMessage
		if err := json.Unmarshal(env.Data[0], &msg); err != nil {
			continue
		}
		var b body
		if err := json.Unmarshal(msg.Message, &b); err != nil {
			continue
		}

		switch {
		case b.SDP != nil:
			if err := p.pc.SetRemoteDescription(*b.SDP); err != nil {
				fatalf("%s: set remote description: %v", p.userID, err)
			}
			if b.SDP.Type == webrtc.SDPTypeOffer {
				answer, err := p.pc.CreateAnswer(nil)
				if err != nil {
					fatalf("%s: create answer: %v", p.userID, err)
				}
				if err := p.pc.SetLocalDescription(answer); err != nil {
					fatalf("%s: set local description: %v", p.userID, err)
				}
				p.send(msg.Sender, body{SDP: &answer})
			}
		case b.Candidate != nil:
			if err := p.pc.AddICECandidate(*b.Candidate); err != nil {
				fatalf("%s: add candidate: %v", p.userID, err)
			}
		}
	}
}

func main() {
	relayURL := envOrDefault("RELAY_WS_URL", "ws://127.0.0.1:8080/ws")

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = logging.LogLevelWarn
	se := webrtc.SettingEngine{LoggerFactory: loggerFactory}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	answerer, err := newPeer(relayURL, "answerer", api)
	if err != nil {
		fatalf("%v", err)
	}
	offerer, err := newPeer(relayURL, "offerer", api)
	if err != nil {
		fatalf("%v", err)
	}

	answerer.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() { answerer.opened <- struct{}{} })
	})

	dc, err := offerer.pc.CreateDataChannel("probe", nil)
	if err != nil {
		fatalf("create data channel: %v", err)
	}
	dc.OnOpen(func() { offerer.opened <- struct{}{} })

	go answerer.pump()
	go offerer.pump()

	// Announce the offerer to the answerer's session before the SDP round
	// trip, mirroring what browser clients do.
	offerer.send("answerer", body{NewParticipationRequest: true})

	offer, err := offerer.pc.CreateOffer(nil)
	if err != nil {
		fatalf("create offer: %v", err)
	}
	if err := offerer.pc.SetLocalDescription(offer); err != nil {
		fatalf("set local description: %v", err)
	}
	offerer.send("answerer", body{SDP: &offer})

	timeout := time.After(30 * time.Second)
	for opened := 0; opened < 2; {
		select {
		case <-offerer.opened:
			opened++
		case <-answerer.opened:
			opened++
		case <-timeout:
			fatalf("data channels did not open within 30s")
		}
	}

	fmt.Println("E2E OK")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
