// Package broker publishes valve commands and decision events over MQTT.
package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const DefaultPublishTimeout = 10 * time.Second

type Config struct {
	URL      string // tcp://host:1883
	Username string
	Password string
	ClientID string
}

// Publisher is the part of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect dials the broker, retrying with exponential backoff. The connection
// is closed when ctx is cancelled.
func Connect(ctx context.Context, cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	var client mqtt.Client
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(15 * time.Second) {
			return fmt.Errorf("connect timed out")
		}
		if err := token.Error(); err != nil {
			log.Printf("broker: connect %s: %v", cfg.URL, err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.URL, err)
	}
	log.Printf("broker: connected to %s", cfg.URL)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("broker: disconnected")
	}()

	return client, nil
}

// publish sends payload at QoS 1 and waits up to timeout for the broker's ack.
func publish(ctx context.Context, p Publisher, topic string, payload []byte, timeout time.Duration) error {
	token := p.Publish(topic, 1, false, payload)

	deadline := timeout
	if d, ok := ctx.Deadline(); ok {
		deadline = min(deadline, time.Until(d))
	}
	if !token.WaitTimeout(deadline) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, deadline)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
