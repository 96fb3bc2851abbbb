package steamnet

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
)

const (
	// WebSocket connection constants
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// Reconnection constants
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// OfferHandler receives decoded offer notifications from the gateway stream.
type OfferHandler interface {
	HandleOfferReceived(ctx context.Context, offer domain.Offer) error
	HandleOfferStateChanged(ctx context.Context, tradeOfferID string, state domain.OfferState) error
}

// offerNotification is one frame on the "offers" channel.
type offerNotification struct {
	Event        string            `json:"event"` // "received" or "state_changed"
	Offer        *domain.Offer     `json:"offer,omitempty"`
	TradeOfferID string            `json:"trade_offer_id,omitempty"`
	State        domain.OfferState `json:"state,omitempty"`
}

// NotificationStream consumes offer lifecycle notifications from the
// gateway's WebSocket feed and hands them to an OfferHandler.
type NotificationStream struct {
	// Connection
	url        string
	apiKey     string       // Optional API key appended to the dial URL
	httpClient *http.Client // Reusable HTTP client configured for HTTP/1.1
	conn       *websocket.Conn
	connCtx    context.Context    // Connection context (cancelled on disconnect)
	cancelFunc context.CancelFunc // For cancelling the connection context
	mu         sync.RWMutex

	// Dependencies
	handler      OfferHandler
	eventManager *events.Manager
	log          zerolog.Logger

	// State
	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1
// Required because Cloudflare negotiates HTTP/2 via TLS ALPN,
// but WebSocket requires HTTP/1.1 for the upgrade handshake.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				// Force HTTP/1.1 by only advertising http/1.1 in ALPN
				// This prevents Cloudflare from negotiating HTTP/2
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false, // Explicitly disable HTTP/2
		},
	}
}

// NewNotificationStream creates a notification stream client. eventManager
// may be nil when event emission is not wanted.
func NewNotificationStream(url, apiKey string, handler OfferHandler, eventManager *events.Manager, log zerolog.Logger) *NotificationStream {
	return &NotificationStream{
		url:          url,
		apiKey:       apiKey,
		httpClient:   createHTTP1Client(),
		handler:      handler,
		eventManager: eventManager,
		log:          log.With().Str("component", "offer_notification_stream").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start initializes the WebSocket connection and starts the read loop
func (ws *NotificationStream) Start() error {
	ws.log.Info().Msg("Starting offer notification stream")

	// Initial connection
	if err := ws.Connect(); err != nil {
		ws.log.Warn().Err(err).Msg("Initial WebSocket connection failed, will retry in background")
		// Start reconnect loop in background
		go ws.reconnectLoop()
		return err
	}

	// Start read loop in background with connection context
	ws.mu.RLock()
	ctx := ws.connCtx
	ws.mu.RUnlock()
	go ws.readMessages(ctx)

	ws.log.Info().Msg("Offer notification stream started successfully")
	return nil
}

// Stop gracefully shuts down the WebSocket connection
func (ws *NotificationStream) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	ws.mu.Unlock()

	ws.log.Info().Msg("Stopping offer notification stream")

	// Signal stop
	close(ws.stopChan)

	// Close connection
	return ws.Disconnect()
}

// Connect establishes the WebSocket connection and subscribes to the offers channel
func (ws *NotificationStream) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	wsURL := ws.url
	if ws.apiKey != "" {
		wsURL += "?key=" + ws.apiKey
	}

	ws.log.Info().Str("url", ws.url).Msg("Connecting to gateway WebSocket")

	// Create context with timeout for the dial operation
	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	// Dial WebSocket with nhooyr.io/websocket using the pre-configured HTTP/1.1 client
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPClient: ws.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	// Create a long-lived context for the connection
	// This context is used for read operations and cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())
	ws.conn = conn
	ws.connCtx = connCtx
	ws.cancelFunc = connCancel
	ws.connected = true

	// Subscribe to the offers channel
	if err := ws.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		ws.conn = nil
		ws.connCtx = nil
		ws.cancelFunc = nil
		ws.connected = false
		return fmt.Errorf("failed to subscribe to offers: %w", err)
	}

	ws.emitTransportStatus(true)
	ws.log.Info().Msg("Successfully connected to gateway WebSocket")
	return nil
}

// Disconnect closes the WebSocket connection
func (ws *NotificationStream) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return nil
	}

	ws.log.Info().Msg("Disconnecting from gateway WebSocket")

	// Cancel the connection context to unblock any pending Read operations
	if ws.cancelFunc != nil {
		ws.cancelFunc()
		ws.cancelFunc = nil
	}

	err := ws.conn.Close(websocket.StatusNormalClosure, "")

	ws.conn = nil
	ws.connCtx = nil
	ws.connected = false

	ws.emitTransportStatus(false)

	if err != nil {
		return fmt.Errorf("error closing WebSocket: %w", err)
	}

	return nil
}

// subscribe sends the subscription message for the offers channel
func (ws *NotificationStream) subscribe(ctx context.Context) error {
	// Gateway WebSocket protocol: ["offers"]
	subscribeMsg := []string{"offers"}

	data, err := json.Marshal(subscribeMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := ws.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}

	ws.log.Info().Msg("Subscribed to offers channel")
	return nil
}

// readMessages continuously reads messages from the WebSocket
func (ws *NotificationStream) readMessages(ctx context.Context) {
	defer func() {
		ws.log.Info().Msg("Read loop stopped")
		// Attempt reconnection if not intentionally stopped
		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if !stopped {
			go ws.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ws.stopChan:
			return
		case <-ctx.Done():
			ws.log.Debug().Msg("Read loop context cancelled")
			return
		default:
		}

		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()

		if conn == nil {
			ws.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			// Check if this is an expected close
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ws.log.Info().Int("status", int(closeStatus)).Msg("WebSocket closed normally")
			} else if ctx.Err() != nil {
				// Context was cancelled (intentional disconnect)
				ws.log.Debug().Msg("Read cancelled by context")
			} else {
				ws.log.Error().Err(err).Msg("Unexpected WebSocket read error")
			}
			return
		}

		// Only process text messages
		if msgType != websocket.MessageText {
			ws.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := ws.handleMessage(ctx, message); err != nil {
			ws.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle WebSocket message")
			// Continue reading despite handler errors
		}
	}
}

// handleMessage parses and dispatches one WebSocket frame
func (ws *NotificationStream) handleMessage(ctx context.Context, message []byte) error {
	// Gateway WebSocket protocol: ["channel", data]
	var rawMessage []json.RawMessage
	if err := json.Unmarshal(message, &rawMessage); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}

	if len(rawMessage) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(rawMessage))
	}

	var channel string
	if err := json.Unmarshal(rawMessage[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	// Only handle the offers channel
	if channel != "offers" {
		ws.log.Debug().Str("channel", channel).Msg("Ignoring non-offers message")
		return nil
	}

	var notification offerNotification
	if err := json.Unmarshal(rawMessage[1], &notification); err != nil {
		return fmt.Errorf("failed to parse offer notification: %w", err)
	}

	return ws.handleNotification(ctx, notification)
}

// handleNotification routes a decoded notification to the handler
func (ws *NotificationStream) handleNotification(ctx context.Context, n offerNotification) error {
	switch n.Event {
	case "received":
		if n.Offer == nil || n.Offer.ID == "" {
			return fmt.Errorf("received event missing offer payload")
		}
		ws.log.Info().
			Str("trade_offer_id", n.Offer.ID).
			Int("items_given", len(n.Offer.ItemsGiven)).
			Int("items_received", len(n.Offer.ItemsReceived)).
			Msg("Offer notification received")
		return ws.handler.HandleOfferReceived(ctx, *n.Offer)

	case "state_changed":
		if n.TradeOfferID == "" || n.State == "" {
			return fmt.Errorf("state_changed event missing trade_offer_id or state")
		}
		ws.log.Info().
			Str("trade_offer_id", n.TradeOfferID).
			Str("state", string(n.State)).
			Msg("Offer state change notification received")
		return ws.handler.HandleOfferStateChanged(ctx, n.TradeOfferID, n.State)

	default:
		ws.log.Debug().Str("event", n.Event).Msg("Ignoring unknown notification event")
		return nil
	}
}

// reconnectLoop handles automatic reconnection with exponential backoff
func (ws *NotificationStream) reconnectLoop() {
	ws.mu.Lock()
	if ws.reconnecting || ws.stopped {
		ws.mu.Unlock()
		return
	}
	ws.reconnecting = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.reconnecting = false
		ws.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ws.stopChan:
			ws.log.Info().Msg("Reconnection loop stopped by user")
			return
		default:
		}

		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if stopped {
			return
		}

		attempt++

		delay := ws.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			ws.log.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Attempting to reconnect to WebSocket")
		} else {
			ws.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Reconnection attempt (exceeded max attempts, will keep retrying)")
		}

		// Wait before reconnecting
		select {
		case <-time.After(delay):
		case <-ws.stopChan:
			return
		}

		if err := ws.Connect(); err != nil {
			ws.log.Error().Err(err).
				Int("attempt", attempt).
				Msg("Reconnection failed")
			continue
		}

		ws.log.Info().
			Int("attempt", attempt).
			Msg("Successfully reconnected to WebSocket")

		// Reset attempt counter on successful connection
		attempt = 0

		// Start read loop with connection context
		ws.mu.RLock()
		ctx := ws.connCtx
		ws.mu.RUnlock()
		go ws.readMessages(ctx)
		return
	}
}

// calculateBackoff calculates exponential backoff delay
func (ws *NotificationStream) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: baseDelay * 2^attempt
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))

	// Cap at max delay
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}

	return time.Duration(delay)
}

// IsConnected returns current connection status. Safe on a nil receiver
// so a stream that was never configured reads as disconnected.
func (ws *NotificationStream) IsConnected() bool {
	if ws == nil {
		return false
	}
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}

// emitTransportStatus announces connectivity changes. Caller holds ws.mu.
func (ws *NotificationStream) emitTransportStatus(connected bool) {
	if ws.eventManager == nil {
		return
	}
	ws.eventManager.EmitTyped("steamnet", &events.TransportStatusChangedData{
		Connected: connected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
