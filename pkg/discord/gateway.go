package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/pkg/discord/types"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// GUILDS + GUILD_MESSAGES + MESSAGE_CONTENT intents.
const gatewayIntents = 513

// Gateway streams MESSAGE_CREATE events for one account over the Discord
// gateway websocket. It is an acceleration on top of polling: every event it
// emits re-enters the same claim pipeline, so losing the connection loses
// nothing, the next poll picks the messages up from the cursor.
type Gateway struct {
	token      string
	apiBaseURL string
	logger     *logrus.Logger

	events  chan types.Message
	onState func(types.ConnectionState)

	mu       sync.Mutex
	conn     *websocket.Conn
	sequence *int64
	running  bool
}

func NewGateway(token, apiBaseURL string, logger *logrus.Logger, onState func(types.ConnectionState)) *Gateway {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	if onState == nil {
		onState = func(types.ConnectionState) {}
	}
	return &Gateway{
		token:      token,
		apiBaseURL: apiBaseURL,
		logger:     logger,
		events:     make(chan types.Message, constants.GatewayEventBufferSize),
		onState:    onState,
	}
}

// Events is the stream of MESSAGE_CREATE events. Closed when Run returns.
func (g *Gateway) Events() <-chan types.Message {
	return g.events
}

// Run connects and reads until the context is cancelled, reconnecting with a
// fixed delay on connection loss.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.events)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		g.onState(types.ConnectionConnecting)
		if err := g.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			g.logger.WithError(err).Warn("Gateway connection lost, reconnecting")
		}
		g.onState(types.ConnectionDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (g *Gateway) connectAndRead(ctx context.Context) error {
	gatewayURL, err := g.fetchGatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gateway URL: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, constants.DefaultGatewayHandshakeSec*time.Second)
	conn, _, err := websocket.Dial(dialCtx, gatewayURL+"/?v=9&encoding=json", nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	helloSeen := false

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("gateway read failed: %w", err)
		}

		var payload types.GatewayPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			g.logger.WithError(err).Warn("Failed to decode gateway payload")
			continue
		}

		switch payload.Op {
		case types.OpHello:
			// One heartbeat loop and one identify per connection. A
			// repeated HELLO on the same socket is a protocol anomaly.
			if helloSeen {
				g.logger.Warn("Duplicate HELLO on gateway connection, ignoring")
				continue
			}
			helloSeen = true
			var hello types.HelloData
			if err := json.Unmarshal(payload.Data, &hello); err != nil {
				return fmt.Errorf("failed to decode HELLO: %w", err)
			}
			go g.heartbeatLoop(heartbeatCtx, time.Duration(hello.HeartbeatInterval)*time.Millisecond)
			if err := g.identify(ctx); err != nil {
				return err
			}

		case types.OpHeartbeatACK:
			// keepalive confirmed

		case types.OpDispatch:
			g.mu.Lock()
			g.sequence = payload.Sequence
			g.mu.Unlock()
			g.handleDispatch(ctx, payload)
		}
	}
}

func (g *Gateway) handleDispatch(ctx context.Context, payload types.GatewayPayload) {
	switch payload.Type {
	case types.EventReady:
		var ready types.ReadyData
		if err := json.Unmarshal(payload.Data, &ready); err != nil {
			g.logger.WithError(err).Warn("Failed to decode READY")
			return
		}
		g.logger.WithField("username", ready.User.Username).Info("Gateway ready")
		g.onState(types.ConnectionConnected)

	case types.EventMessageCreate:
		var msg types.Message
		if err := json.Unmarshal(payload.Data, &msg); err != nil {
			g.logger.WithError(err).Warn("Failed to decode MESSAGE_CREATE")
			return
		}
		select {
		case g.events <- msg:
		case <-ctx.Done():
		default:
			// Buffer full: drop, the poll path will catch the message.
			g.logger.WithField("channel_id", msg.ChannelID).Debug("Gateway event buffer full, deferring to poll")
		}
	}
}

func (g *Gateway) identify(ctx context.Context) error {
	identify := types.GatewayPayload{Op: types.OpIdentify}
	data, err := json.Marshal(types.IdentifyData{
		Token: g.token,
		Properties: types.IdentifyProperties{
			OS:      "linux",
			Browser: "discord-parer",
			Device:  "discord-parer",
		},
		Intents: gatewayIntents,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal identify: %w", err)
	}
	identify.Data = data

	return g.writePayload(ctx, identify)
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			seq := g.sequence
			g.mu.Unlock()

			payload := types.GatewayPayload{Op: types.OpHeartbeat}
			if seq != nil {
				data, err := json.Marshal(*seq)
				if err == nil {
					payload.Data = data
				}
			}
			if err := g.writePayload(ctx, payload); err != nil {
				g.logger.WithError(err).Debug("Heartbeat write failed")
				return
			}
		}
	}
}

func (g *Gateway) writePayload(ctx context.Context, payload types.GatewayPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (g *Gateway) fetchGatewayURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+"/gateway", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway endpoint returned status %d", resp.StatusCode)
	}

	var body types.GatewayURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode gateway URL: %w", err)
	}
	return body.URL, nil
}
