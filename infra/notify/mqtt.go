// Package notify relays job lifecycle events to external channels.
package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/events"
	coremon "github.com/kilianp07/recsizing/core/monitoring"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTRelay publishes every terminal job event to <prefix>/<order_id>/status.
type MQTTRelay struct {
	cli        pahoClient
	prefix     string
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	mon        coremon.Monitor
}

// NewMQTTRelay connects to the broker described by cfg.
func NewMQTTRelay(cfg config.MQTTConfig, log logger.Logger, mon coremon.Monitor) (*MQTTRelay, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if mon == nil {
		mon = coremon.NopMonitor{}
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTRelay{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
		mon:        mon,
	}, nil
}

func clientOptions(cfg config.MQTTConfig) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// loadTLSConfig builds a TLS configuration from the configured PEM files. A
// missing CA bundle keeps the system roots; client certificates are optional.
func loadTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.CABundle != "" {
		caBytes, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("ca bundle %s holds no certificate", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// Topic returns the status topic of an order.
func (r *MQTTRelay) Topic(orderID string) string {
	return fmt.Sprintf("%s/%s/status", r.prefix, orderID)
}

// Publish sends ev, retrying with exponential backoff. Messages are never
// retained: the poll endpoint stays the source of truth.
func (r *MQTTRelay) Publish(ev events.JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := r.Topic(ev.OrderID)
	var publishErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		token := r.cli.Publish(topic, r.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			r.log.Debugf("published %s to %s", ev.State, topic)
			return nil
		}
		r.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < r.maxRetries {
			time.Sleep(r.backoff * time.Duration(1<<attempt))
		}
	}
	r.mon.CaptureException(publishErr, map[string]string{
		"module":   "notify",
		"order_id": ev.OrderID,
	})
	return publishErr
}

// Start relays the events of bus until ctx is canceled or the bus is closed.
// The returned channel is closed once the relay has stopped.
func (r *MQTTRelay) Start(ctx context.Context, bus *eventbus.TypedBus[events.JobEvent]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := r.Publish(ev); err != nil {
					r.log.Warnf("notify %s: %v", ev.OrderID, err)
				}
			}
		}
	}()
	return done
}

// Close disconnects from the broker.
func (r *MQTTRelay) Close() {
	if r.cli != nil && r.cli.IsConnected() {
		r.cli.Disconnect(250)
	}
}
