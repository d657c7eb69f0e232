// Package pubsub carries feature echoes from the authority to clients over
// an AMQP topic exchange.
package pubsub

import "time"

// DefaultExchange is the topic exchange feature echoes are published on.
const DefaultExchange = "wsmenu.workspace"

// Config configures a Client. Zero durations take defaults.
type Config struct {
	URL      string
	Exchange string
	Producer string

	ConsumerPrefetch int

	ReconnectBase          time.Duration
	ReconnectCap           time.Duration
	ReconnectJitterPercent int
	DialTimeout            time.Duration
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.ConsumerPrefetch <= 0 {
		c.ConsumerPrefetch = 16
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectCap <= 0 {
		c.ReconnectCap = 30 * time.Second
	}
	if c.ReconnectJitterPercent <= 0 {
		c.ReconnectJitterPercent = 25
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}
