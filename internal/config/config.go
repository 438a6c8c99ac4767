// Package config holds the validated runtime configuration consumed by the
// engines. Validation failures are the only fatal errors in the system and
// happen before any socket is opened.
package config

import (
	"fmt"
	"time"

	"github.com/okabre/sawlink/internal/impair"
)

// Sender configures one reliable-sending endpoint.
type Sender struct {
	Target     string        // receiver (or relay) address, host:port
	Timeout    time.Duration // per-attempt wait for an acknowledgment
	MaxRetries int           // transmission attempts per message, >= 1
}

// Validate reports the first invalid field, if any.
func (c *Sender) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("config: target address is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: max retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

// Receiver configures one receiving endpoint.
type Receiver struct {
	Listen string // bind address, host:port
}

func (c *Receiver) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	return nil
}

// PolicySpec is one direction's impairment parameters as parsed from flags
// or a profile file: percentages plus delay bounds in milliseconds.
type PolicySpec struct {
	Drop     int // drop probability, 0..100
	Delay    int // delay probability, 0..100
	DelayMin int // lower delay bound, ms
	DelayMax int // upper delay bound, ms
}

func (p PolicySpec) validate(dir string) error {
	if p.Drop < 0 || p.Drop > 100 {
		return fmt.Errorf("config: %s drop probability out of range [0,100]: %d", dir, p.Drop)
	}
	if p.Delay < 0 || p.Delay > 100 {
		return fmt.Errorf("config: %s delay probability out of range [0,100]: %d", dir, p.Delay)
	}
	if p.DelayMin < 0 || p.DelayMax < 0 {
		return fmt.Errorf("config: %s delay bounds must not be negative", dir)
	}
	if p.DelayMin > p.DelayMax {
		return fmt.Errorf("config: %s delay min %dms exceeds max %dms", dir, p.DelayMin, p.DelayMax)
	}
	return nil
}

// Policy converts the spec into the impairment model's representation.
func (p PolicySpec) Policy() impair.Policy {
	return impair.Policy{
		DropPct:  p.Drop,
		DelayPct: p.Delay,
		DelayMin: time.Duration(p.DelayMin) * time.Millisecond,
		DelayMax: time.Duration(p.DelayMax) * time.Millisecond,
	}
}

// Relay configures the impairment relay. Near is applied to traffic flowing
// toward the far (target) address, Far to traffic flowing back.
type Relay struct {
	Listen   string     // bind address, host:port
	Target   string     // far peer address, host:port
	Near     PolicySpec // near → far impairment
	Far      PolicySpec // far → near impairment
	PcapFile string     // optional capture file for every received datagram
}

func (c *Relay) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.Target == "" {
		return fmt.Errorf("config: target address is required")
	}
	if err := c.Near.validate("near"); err != nil {
		return err
	}
	return c.Far.validate("far")
}
