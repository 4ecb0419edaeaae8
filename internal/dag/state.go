package dag

// TaskState is the runtime execution state of a node.
//
// It is kept separate from TaskGraph, which is immutable, so the same graph
// can be executed repeatedly.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
	TaskCached    TaskState = "CACHED"
)

// AllStates lists every state in lifecycle order.
var AllStates = []TaskState{TaskPending, TaskRunning, TaskCompleted, TaskFailed, TaskSkipped, TaskCached}
