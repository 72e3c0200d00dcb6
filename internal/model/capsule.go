package model

import "time"

// A Capsule represents a sealed bundle of content waiting for delivery.
//
// SealedContent is the encrypted form of a capsule.Bundle, only the
// codec can read it back. A nil ScheduledAt means the capsule is a
// draft and is only deliverable by an explicit send action. The record
// is deleted once delivered, a missing id is the delivered marker.
type Capsule struct {
	Base `msgpack:",inline" storm:"inline"`

	CreatorID     string     `msgpack:"creator_id" storm:"index"`
	Title         string     `msgpack:"title"`
	SealedContent string     `msgpack:"sealed_content"`
	Number        int        `msgpack:"user_capsule_number"`
	ScheduledAt   *time.Time `msgpack:"scheduled_at" storm:"index"`
}

// Draft returns true when no delivery time is set.
func (c *Capsule) Draft() bool {
	return c.ScheduledAt == nil
}
