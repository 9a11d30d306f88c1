package domain

import (
	"fmt"
	"strings"
)

const (
	MinMemberCapacity = 1
	MaxMemberCapacity = 99
)

type ChannelID string
type GuildID string
type MemberID string

type TriggerTemplate struct {
	TriggerChannelID ChannelID
	DisplayName      string
	MemberCapacity   int
	Sequence         int
}

func (t TriggerTemplate) Validate() error {
	if strings.TrimSpace(string(t.TriggerChannelID)) == "" {
		return fmt.Errorf("trigger channel id is required")
	}
	if strings.TrimSpace(t.DisplayName) == "" {
		return fmt.Errorf("display name is required")
	}
	if t.MemberCapacity < MinMemberCapacity || t.MemberCapacity > MaxMemberCapacity {
		return fmt.Errorf("capacity %d out of range [%d, %d]", t.MemberCapacity, MinMemberCapacity, MaxMemberCapacity)
	}
	if t.Sequence < 1 {
		return fmt.Errorf("sequence must start at 1 or above, got %d", t.Sequence)
	}

	return nil
}

// NextOrdinal hands out the current sequence value and advances it.
func (t *TriggerTemplate) NextOrdinal() int {
	ordinal := t.Sequence
	t.Sequence++
	return ordinal
}

// AdvanceTo raises the sequence so it never hands out an ordinal below next.
func (t *TriggerTemplate) AdvanceTo(next int) {
	if next > t.Sequence {
		t.Sequence = next
	}
}

func (t TriggerTemplate) ChannelName(ordinal int) string {
	return fmt.Sprintf("%s %d", strings.TrimSpace(t.DisplayName), ordinal)
}
