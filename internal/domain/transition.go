package domain

// VoiceStateTransition is one membership change. Empty channel ids mean "not in voice".
type VoiceStateTransition struct {
	GuildID           GuildID
	MemberID          MemberID
	PreviousChannelID ChannelID
	ChannelID         ChannelID
}

func (t VoiceStateTransition) Joined() bool {
	return t.ChannelID != "" && t.ChannelID != t.PreviousChannelID
}

func (t VoiceStateTransition) Left() bool {
	return t.PreviousChannelID != "" && t.PreviousChannelID != t.ChannelID
}
