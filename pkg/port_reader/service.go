// Package port_reader drives ingestion: it owns the serial session with the
// base station and feeds every received byte to the frame parser.
package port_reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
)

// Default line speed of the base station.
const DefaultBaudrate = 9600

var (
	ErrTooManyErrors = fmt.Errorf("too many consecutive read errors")
	ErrNotConnected  = errors.New("serial port not connected")
)

type Option func(*BaseStationReader)

func WithOpener(open Opener) Option {
	return func(r *BaseStationReader) {
		r.open = open
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *BaseStationReader) {
		r.metrics = m
	}
}

// WithErrorTolerance sets how many consecutive failures are tolerated and
// how long to pause after each one.
func WithErrorTolerance(maxErrors int, retryDelay time.Duration) Option {
	return func(r *BaseStationReader) {
		r.maxErrors = max(1, maxErrors)
		r.retryDelay = retryDelay
	}
}

// OpenSerial opens a tty at 8N1, returning as soon as one byte is available.
func OpenSerial(port string, baudrate uint) (io.ReadWriteCloser, error) {
	options := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}
	return serial.Open(options)
}

// Initialize a new reader that writes everything it receives into sink,
// normally a *protocol.Parser.
func NewBaseStationReader(port string, baudrate uint, sink io.Writer, opts ...Option) *BaseStationReader {
	if baudrate == 0 {
		baudrate = DefaultBaudrate
	}
	reader := &BaseStationReader{
		port:       port,
		baudrate:   baudrate,
		open:       OpenSerial,
		sink:       sink,
		maxErrors:  10,
		retryDelay: time.Second,
		chunkSize:  256,
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Run reads from the base station until ctx is cancelled. Read failures are
// tolerated up to the configured limit, reopening the port after each one.
// The sink is only ever written from this goroutine.
func (r *BaseStationReader) Run(ctx context.Context) error {
	if err := r.connect(); err != nil {
		return err
	}
	defer r.disconnect()

	// Closing the port is the only way to unblock a pending read.
	stop := context.AfterFunc(ctx, r.disconnect)
	defer stop()

	consecutiveErrors := 0
	var lastError error
	buf := make([]byte, r.chunkSize)

	for consecutiveErrors < r.maxErrors {
		n, err := r.read(buf)
		if n > 0 {
			r.metrics.SerialRead(time.Now())
			if _, werr := r.sink.Write(buf[:n]); werr != nil {
				log.Printf("Failed to process %d bytes: %v", n, werr)
			}
			consecutiveErrors = 0
		}
		if ctx.Err() != nil {
			log.Println("Stop signal received, disconnecting")
			return nil
		}
		if err == nil {
			continue
		}

		consecutiveErrors++
		lastError = err
		r.metrics.SerialError()
		log.Printf("Error reading from base station (%d/%d): %v", consecutiveErrors, r.maxErrors, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retryDelay):
		}

		r.disconnect()
		if err := r.connect(); err != nil {
			lastError = err
			consecutiveErrors++
			r.metrics.SerialError()
		}
		// A cancel that landed while reopening has already run its
		// disconnect against the old port.
		if ctx.Err() != nil {
			log.Println("Stop signal received while reconnecting, disconnecting")
			return nil
		}
	}

	log.Printf("Too many consecutive errors (%d), stopping reader: %v", r.maxErrors, lastError)
	return fmt.Errorf("%w: %w", ErrTooManyErrors, lastError)
}

// Open the connection to the base station.
func (r *BaseStationReader) connect() error {
	port, err := r.open(r.port, r.baudrate)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	r.portMutex.Lock()
	r.serialPort = port
	r.portMutex.Unlock()
	log.Printf("Connected to base station on %s [%d baud]", r.port, r.baudrate)
	return nil
}

func (r *BaseStationReader) disconnect() {
	r.portMutex.Lock()
	defer r.portMutex.Unlock()
	if r.serialPort != nil {
		r.serialPort.Close()
		r.serialPort = nil
		log.Println("Disconnected from base station")
	}
}

func (r *BaseStationReader) read(buf []byte) (int, error) {
	r.portMutex.Lock()
	port := r.serialPort
	r.portMutex.Unlock()
	if port == nil {
		return 0, ErrNotConnected
	}
	return port.Read(buf)
}
