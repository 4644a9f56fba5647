package vm

// Status is the lifecycle state of an instance.
//
//	Created → Running → {Suspended → Running} → {Completed | Faulted | Cancelled}
type Status uint8

const (
	StatusCreated Status = iota
	StatusRunning
	StatusSuspended
	StatusCompleted
	StatusFaulted
	StatusCancelled
)

var statusNames = [...]string{
	StatusCreated:   "created",
	StatusRunning:   "running",
	StatusSuspended: "suspended",
	StatusCompleted: "completed",
	StatusFaulted:   "faulted",
	StatusCancelled: "cancelled",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Terminal reports whether the instance will never run again.
func (s Status) Terminal() bool {
	return s >= StatusCompleted
}

// Result is returned by Advance.
type Result struct {
	Status Status
	// ResumeTick is the tick a suspended instance wants to run again.
	// It is meaningless while the instance waits for a sync lock.
	ResumeTick int64
	// Lock names the sync lock a suspended instance is queued on.
	Lock  string
	Fault *Fault
}

// Blocked reports whether the instance waits for a lock hand-off rather
// than for a tick.
func (r Result) Blocked() bool {
	return r.Status == StatusSuspended && r.Lock != ""
}
