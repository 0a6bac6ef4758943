package jobs

import "github.com/poiesic/schedex/core"

// Observer is told about every job status change after it is stored.
// from is empty for a newly enqueued job. Implementations must not block.
type Observer interface {
	JobTransitioned(job *core.Job, from core.JobStatus)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(job *core.Job, from core.JobStatus)

func (f ObserverFunc) JobTransitioned(job *core.Job, from core.JobStatus) {
	f(job, from)
}
