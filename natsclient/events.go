package natsclient

import (
	"time"

	"github.com/nats-io/nats.go"
)

// OnHealthChange replaces the health callback set by
// WithHealthChangeCallback.
func (c *Client) OnHealthChange(fn func(bool)) {
	c.mu.Lock()
	c.onHealthChange = fn
	c.mu.Unlock()
}

func (c *Client) healthCallback() func(bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onHealthChange
}

// notifyAsync calls the health callback on its own goroutine so nats.go's
// callback goroutine is never blocked by it.
func (c *Client) notifyAsync(healthy bool) {
	if fn := c.healthCallback(); fn != nil {
		go fn(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	c.logger.Warn("Disconnected from NATS", "error", err)
	c.notifyAsync(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Reconnected to NATS")
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
	}
	c.notifyAsync(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.notifyAsync(false)
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("NATS error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("NATS error", "error", err)
}

// probe reports whether the connection answers a round trip.
func (c *Client) probe() bool {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return false
	}
	_, err := conn.RTT()
	return err == nil
}

// startHealthMonitoring probes the connection every healthInterval and
// reports flips between healthy and unhealthy. nats.go's own handlers miss
// a server that stops answering without closing the socket.
func (c *Client) startHealthMonitoring() {
	c.stopHealthMonitoring()

	c.mu.Lock()
	done := make(chan struct{})
	c.healthDone = done
	interval := c.healthInterval
	c.mu.Unlock()

	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		was := c.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-tick.C:
			}
			if c.GetConnection() == nil {
				continue
			}

			healthy := c.probe()
			switch status := c.Status(); {
			case healthy && status != StatusConnected:
				c.setStatus(StatusConnected)
			case !healthy && status == StatusConnected:
				c.setStatus(StatusReconnecting)
			}
			if healthy != was {
				if fn := c.healthCallback(); fn != nil {
					fn(healthy)
				}
			}
			was = healthy
		}
	}()
}

func (c *Client) stopHealthMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthDone != nil {
		close(c.healthDone)
		c.healthDone = nil
	}
}
