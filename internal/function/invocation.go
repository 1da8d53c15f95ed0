package function

import (
	"fmt"
	"time"
)

// Status of an invocation. An invocation is in exactly one status at any
// instant; Succeeded, Failed, TimedOut, Canceled and Rejected are terminal.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusTimedOut  Status = "TimedOut"
	StatusCanceled  Status = "Canceled"
	StatusRejected  Status = "Rejected"
)

// Terminal returns true if no further transition is possible from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusQueued, StatusRunning:
		return false
	}
	return true
}

// Invocation represents a single triggered execution request for a function.
type Invocation struct {
	Id       string
	Fun      *Function
	Params   map[string]interface{}
	Arrival  time.Time
	Deadline time.Time // Arrival + function timeout
	Async    bool
	Report   ExecutionReport
}

func (inv *Invocation) String() string {
	return fmt.Sprintf("[%s] Inv-%s", inv.Fun.Name, inv.Id)
}

// Expired returns true if the deadline has passed at time t.
func (inv *Invocation) Expired(t time.Time) bool {
	return t.After(inv.Deadline)
}

type ExecutionReport struct {
	Result       string
	Output       string
	IsWarmStart  bool
	InitTime     float64 // seconds from arrival to dispatch
	Duration     float64 // seconds spent in the handler
	ResponseTime float64 // seconds from arrival to completion
}

type Response struct {
	Success bool
	Status  Status
	ExecutionReport
}

type AsyncResponse struct {
	ReqId string
}
