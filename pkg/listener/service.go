// Package listener subscribes to a gateway's websocket stream and keeps the
// subscription alive across connection drops.
package listener

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

var ErrGaveUp = fmt.Errorf("max connection retries reached")

type options struct {
	tls            bool
	maxRetries     int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
	readTimeout    time.Duration
	pingInterval   time.Duration
}

type Option func(*options)

func WithTLS(enabled bool) Option {
	return func(o *options) {
		o.tls = enabled
	}
}

func WithRetry(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max(1, maxRetries)
		o.baseRetryDelay = baseDelay
		o.maxRetryDelay = maxDelay
	}
}

// WithReadTimeout sets how long a silent connection is trusted. Pongs
// count as traffic.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
		o.pingInterval = max(d/3, time.Millisecond)
	}
}

// StreamURL is the websocket address of one sensor quantity on host.
func StreamURL(host string, sensor int, q types.Quantity, tls bool) url.URL {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: host, Path: "/ws/" + strconv.Itoa(sensor) + "/" + q.String()}
}

// Manage websocket connection and call funcToCall for each reading.
// Returns nil once ctx is cancelled, or ErrGaveUp when the gateway stays
// unreachable.
func StartListener(
	ctx context.Context,
	host string,
	sensor int,
	q types.Quantity,
	funcToCall func(reading *types.SensorReading),
	opts ...Option,
) error {
	o := options{
		maxRetries:     10,
		baseRetryDelay: 2 * time.Second,
		maxRetryDelay:  60 * time.Second,
		readTimeout:    90 * time.Second,
		pingInterval:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	u := StreamURL(host, sensor, q, o.tls)
	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Println("Interrupt received, shutting down...")
			return nil
		}

		// Calculate retry delay with exponential backoff
		retryDelay := min(time.Duration(1<<retryCount)*o.baseRetryDelay, o.maxRetryDelay)

		if retryCount > 0 {
			log.Printf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, o.maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Println("Interrupt received during retry wait, shutting down...")
				return nil
			}
		}

		log.Printf("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Printf("Connection failed: %v", err)
			retryCount++
			if retryCount >= o.maxRetries {
				log.Printf("Max retries (%d) reached. Giving up.", o.maxRetries)
				return fmt.Errorf("%w: %w", ErrGaveUp, err)
			}
			continue
		}

		log.Printf("Connected! Accepting readings of %s.", types.DeviceName(sensor, q))

		// Reset retry count on successful connection
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, &o, funcToCall)
		c.Close()

		if !connectionBroken {
			// Clean shutdown requested
			return nil
		}

		log.Println("Connection lost, will retry...")
	}
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	o *options,
	funcToCall func(reading *types.SensorReading),
) bool {
	done := make(chan struct{})

	// Set read deadline to detect dead connections
	c.SetReadDeadline(time.Now().Add(o.readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(o.readTimeout))
	})

	// Goroutine to read messages
	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				} else {
					log.Printf("Connection closed: %v", err)
				}
				return
			}

			// Reset read deadline on successful message
			c.SetReadDeadline(time.Now().Add(o.readTimeout))

			// We only expect SensorReading messages
			if messageType != websocket.TextMessage {
				log.Printf("Received unexpected message type: %d", messageType)
				continue
			}
			if reading := types.SensorReadingFromJsonBytes(message); reading != nil {
				funcToCall(reading)
			} else {
				log.Printf("Failed to parse sensor reading: %s", string(message))
			}
		}
	}()

	// Send periodic pings to keep connection alive
	ticker := time.NewTicker(o.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				log.Printf("Failed to send ping: %v", err)
			}
		case <-done:
			// Connection broke
			return true
		case <-ctx.Done():
			log.Println("Interrupt received, closing connection...")

			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Error sending close message:", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}

			// Clean shutdown
			return false
		}
	}
}
