package herdcache

// Status is the coordination state of one key.
type Status uint8

const (
	// StatusInit: no request has resolved the key yet in this buffer's lifetime.
	StatusInit Status = iota
	// StatusRunning: a computation is in flight here or in another process.
	StatusRunning
	// StatusFinished: the latest set completed; the value is in the backend.
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}
