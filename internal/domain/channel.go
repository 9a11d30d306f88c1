package domain

import "time"

type Permission uint8

const (
	PermissionView Permission = 1 << iota
	PermissionConnect
	PermissionSpeak
)

// PermissionJoin is what general membership needs to find and use a spawned channel.
const PermissionJoin = PermissionView | PermissionConnect | PermissionSpeak

func (p Permission) Has(flag Permission) bool {
	return p&flag == flag
}

type PermissionGrant struct {
	TargetID string
	Allow    Permission
}

type VoiceChannelSpec struct {
	Name     string
	Capacity int
	ParentID ChannelID
	Grants   []PermissionGrant
}

type ChannelState string

const (
	ChannelStateActive          ChannelState = "active"
	ChannelStatePendingDeletion ChannelState = "pending_deletion"
)

// TrackedChannel is the persisted and reported view of one managed channel.
type TrackedChannel struct {
	ChannelID        ChannelID
	GuildID          GuildID
	TriggerChannelID ChannelID
	Name             string
	CreatedAt        time.Time
	State            ChannelState
}
