package ports

import "github.com/bnema/tempvc/internal/domain"

// Recorder receives lifecycle observations for metrics.
type Recorder interface {
	ChannelCreated(template domain.TriggerTemplate)
	ChannelDeleted()
	DeletionScheduled()
	DeletionCancelled()
	OperationFailed(operation string, err error)
	TrackedChannels(n int)
}

type NopRecorder struct{}

func (NopRecorder) ChannelCreated(domain.TriggerTemplate) {}
func (NopRecorder) ChannelDeleted()                       {}
func (NopRecorder) DeletionScheduled()                    {}
func (NopRecorder) DeletionCancelled()                    {}
func (NopRecorder) OperationFailed(string, error)         {}
func (NopRecorder) TrackedChannels(int)                   {}
