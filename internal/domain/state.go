package domain

type ManagerState struct {
	Counters map[ChannelID]int
	Channels []TrackedChannel
}

func (s ManagerState) Counter(trigger ChannelID) int {
	if s.Counters == nil {
		return 0
	}
	return s.Counters[trigger]
}
