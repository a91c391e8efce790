package natsclient

import "time"

const initialBackoff = time.Second

// Failures is the number of failed connection attempts since the last
// successful one.
func (c *Client) Failures() int32 { return c.failures.Load() }

// Backoff is how long the circuit stays open the next time it opens.
func (c *Client) Backoff() time.Duration { return c.backoff.Load().(time.Duration) }

func (c *Client) resetBreakerState() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(initialBackoff)
	c.lastFailure.Store(time.Time{})
}

// recordFailure counts a failed attempt. Every circuitThreshold failures
// the circuit opens, or stays open, and the backoff doubles up to
// maxBackoff. It reports whether the circuit is open afterwards.
func (c *Client) recordFailure() bool {
	total := c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	round := c.circuitFailures.Add(1)
	c.logger.Debug("Recorded connection failure", "failures", total, "circuit_failures", round)

	if round < c.circuitThreshold {
		return c.Status() == StatusCircuitOpen
	}
	c.circuitFailures.Store(0)

	wait := c.Backoff()
	c.backoff.Store(min(2*wait, c.maxBackoff))

	current := c.Status()
	if current == StatusCircuitOpen {
		c.logger.Warn("Circuit breaker still open", "backoff", c.Backoff())
		return true
	}
	if c.status.CompareAndSwap(current, StatusCircuitOpen) {
		c.setStatus(StatusCircuitOpen)
		c.logger.Warn("Circuit breaker opened", "failures", round, "backoff", wait)
		time.AfterFunc(wait, c.testCircuit)
	}
	return true
}

// resetCircuit closes the circuit after a successful connection.
func (c *Client) resetCircuit() {
	c.resetBreakerState()
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit: the next Connect dials again.
func (c *Client) testCircuit() {
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("Circuit breaker half-open")
		c.setStatus(StatusDisconnected)
	}
}
