package kandinsky

import "time"

// JobTopic is the event bus topic carrying JobEvent payloads.
const JobTopic = "image.job"

// Status is the lifecycle state of one generation job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether no further transitions can follow s.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusTimedOut, StatusCanceled:
		return true
	}
	return false
}

// Job tracks one submission through polling. It lives only for the duration of
// a GenerateImage call.
type Job struct {
	ID       string
	Status   Status
	Image    []byte
	Reason   Reason
	Detail   string
	Attempts int
}

// JobEvent is published on every job state change.
type JobEvent struct {
	JobID    string
	Status   Status
	Reason   Reason
	Attempts int
	At       time.Time
}

// Publisher receives job events. *eventbus.Bus satisfies it.
type Publisher interface {
	Publish(topic string, payload any)
}

func (c *Client) transition(job *Job, s Status, r Reason) {
	if job.Status == s && !s.Terminal() {
		return
	}
	job.Status = s
	job.Reason = r
	if c.events != nil {
		c.events.Publish(JobTopic, JobEvent{JobID: job.ID, Status: s, Reason: r, Attempts: job.Attempts, At: time.Now()})
	}
}
