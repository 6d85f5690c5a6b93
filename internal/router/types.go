package router

// Liveness receives the core's availability signals.
type Liveness interface {
	RecordHeartbeat()
	MarkGoingDown()
	MarkReconnected()
	Dismiss()
}

// View renders the user-visible effects of core messages.
type View interface {
	SetTrainingStatus(status string)
	AppendInstructions(text string)
	AddConfigWarning(skill, key string, value any)
	SetResourceUsage(usage ResourceUsage)
}

// ResourceUsage is the core's host load report, in percent.
type ResourceUsage struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
	SWP float64 `json:"swp"`
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64 `json:"messages_received"`
	MessagesRouted   int64 `json:"messages_routed"`
	ParseErrors      int64 `json:"parse_errors"`
	UnknownMessages  int64 `json:"unknown_messages"`
}

// Training status values published on the trainingStatus topic.
const (
	TrainingStatusTraining = "training"
	TrainingStatusFailed   = "failed"
	TrainingStatusDone     = "done"
)
