// Package health reports whether the gateway can reach its database, over HTTP and over the
// standard gRPC health protocol.
package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *db.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the body of the HTTP health endpoints.
type Status struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (s Status) Healthy() bool { return s.Status == "healthy" }

type Checker struct {
	db      Pinger
	timeout time.Duration
}

func NewChecker(db Pinger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{db: db, timeout: timeout}
}

// Check runs the database probe.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.db.Ping(ctx); err != nil {
		return Status{Status: "unhealthy", Database: "not connected, Error: " + err.Error()}
	}
	return Status{Status: "healthy", Database: "connected"}
}
