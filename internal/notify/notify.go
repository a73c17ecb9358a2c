// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify implements the STOMP notification receiver (spec.md 4.E):
// a dedicated background task drains frames from the HMC's notification
// port into a bounded queue; Notifications() is a cancellable channel of
// delivered values in arrival order. JMS and parse errors are delivered
// in-band (as a Notification with Err set) rather than terminating the
// receiver.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-stomp/stomp/v3"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
	"github.com/zhmcclient/zhmc-go/internal/logging"
	"github.com/zhmcclient/zhmc-go/internal/metrics"
	"github.com/zhmcclient/zhmc-go/internal/transport"
)

// defaultPort is the HMC's default STOMP notification port (spec.md 6).
const defaultPort = "61612"

// Notification is a single delivered STOMP frame, decoded per spec.md 6's
// wire contract (notification-type among property-change, status-change,
// inventory-change, os-message, job-completion). Err is set instead of
// Body/Type when the frame itself was a JMS error or failed to parse;
// the sequence continues afterward.
type Notification struct {
	Topic   string
	Headers map[string]string
	Type    string
	Body    map[string]any
	Err     error
}

// Config configures a Receiver against one HMC host's notification port.
// Unlike Session host failover, a Receiver dials its single configured
// host and does not retry other candidates — a caller needing failover
// constructs a fresh Receiver against the Session's current host after a
// re-logon.
type Config struct {
	Host       string
	Port       string // defaults to defaultPort
	Userid     string
	Password   string
	Topics     []string
	CertVerify transport.CertVerify
	CACertPath string
	QueueSize  int // bounded-queue capacity; defaults to 256
}

// Receiver is a suture.Service (Serve(ctx) error) that owns one STOMP
// connection and feeds a bounded queue of Notification values (spec.md
// 4.E, 5). Construct one per NotificationReceiver; Close is idempotent.
type Receiver struct {
	cfg    Config
	logger zerolog.Logger

	queue  chan Notification
	closed chan struct{}
}

// NewReceiver creates a Receiver. Serve must be called (directly, or via
// a supervisor.SessionTree.AddNotifyService) to open the connection.
func NewReceiver(cfg Config) *Receiver {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}
	return &Receiver{
		cfg:    cfg,
		logger: logging.Logger().With().Str("component", "notify").Str("host", cfg.Host).Logger(),
		queue:  make(chan Notification, cfg.QueueSize),
		closed: make(chan struct{}),
	}
}

// Notifications returns the channel notifications are delivered on, in
// arrival order. Reading it is the "producer of notifications() blocks on
// the queue" side of spec.md 4.E's delivery contract; a full queue applies
// back-pressure to the STOMP frame reader rather than dropping frames.
func (r *Receiver) Notifications() <-chan Notification { return r.queue }

// Close idempotently signals Serve to tear down the connection and return.
// It does not close the Notifications() channel: a reader blocked on it
// stays blocked until its own context or caller stops it.
func (r *Receiver) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}

// Serve implements suture.Service: it dials, logs on, subscribes to every
// configured topic, and drains frames until ctx is canceled or Close is
// called. A connection failure returns an error so suture restarts it with
// backoff; Close stops restarts permanently.
func (r *Receiver) Serve(ctx context.Context) error {
	select {
	case <-r.closed:
		return nil
	default:
	}

	conn, err := r.dial()
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", r.cfg.Host, err)
	}
	defer conn.Disconnect()
	metrics.NotificationReceiverReconnectsTotal.Inc()

	subs := make([]*stomp.Subscription, 0, len(r.cfg.Topics))
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()
	for _, topic := range r.cfg.Topics {
		sub, err := conn.Subscribe(topic, stomp.AckAuto)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	frames := make(chan *stomp.Message)
	done := make(chan struct{})
	defer close(done)
	for _, sub := range subs {
		go forward(sub, frames, done)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.closed:
			return nil
		case msg, ok := <-frames:
			if !ok {
				return fmt.Errorf("notify: subscription channel closed unexpectedly")
			}
			r.deliver(msg)
		}
	}
}

func forward(sub *stomp.Subscription, out chan<- *stomp.Message, done <-chan struct{}) {
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			select {
			case out <- msg:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

func (r *Receiver) deliver(msg *stomp.Message) {
	if msg.Err != nil {
		r.enqueue(Notification{
			Topic: msg.Destination,
			Err:   &zhmcerrors.NotificationJMSError{Message: msg.Err.Error()},
		})
		return
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		r.logger.Warn().Err(err).Msg("unparseable notification body")
		r.enqueue(Notification{
			Topic: msg.Destination,
			Err:   &zhmcerrors.NotificationParseError{Body: string(msg.Body), Cause: err},
		})
		return
	}

	headers := map[string]string{}
	if msg.Header != nil {
		for i := 0; i < msg.Header.Len(); i++ {
			k, v := msg.Header.GetAt(i)
			headers[k] = v
		}
	}

	notifType, _ := body["notification-type"].(string)
	r.enqueue(Notification{Topic: msg.Destination, Headers: headers, Type: notifType, Body: body})
}

func (r *Receiver) enqueue(n Notification) {
	label := n.Type
	if label == "" {
		label = "error"
	}
	select {
	case r.queue <- n:
		metrics.NotificationsDeliveredTotal.WithLabelValues(label).Inc()
	case <-r.closed:
		metrics.NotificationsDroppedTotal.WithLabelValues(label).Inc()
	}
}

func (r *Receiver) dial() (*stomp.Conn, error) {
	addr := net.JoinHostPort(r.cfg.Host, r.cfg.Port)
	tlsConfig, err := transport.BuildTLSConfig(transport.Config{
		Host:       r.cfg.Host,
		CertVerify: r.cfg.CertVerify,
		CACertPath: r.cfg.CACertPath,
	})
	if err != nil {
		return nil, err
	}

	netConn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
	if err != nil {
		return nil, err
	}

	conn, err := stomp.Connect(netConn,
		stomp.ConnOpt.Login(r.cfg.Userid, r.cfg.Password),
		stomp.ConnOpt.Host(r.cfg.Host),
	)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return conn, nil
}
