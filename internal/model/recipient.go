package model

// A Recipient ties a username to a capsule.
//
// Usernames are kept verbatim, resolution to a transport address
// happens at delivery time and can fail if the user never registered
// or changed the name since.
type Recipient struct {
	Base `msgpack:",inline" storm:"inline"`

	CapsuleID string `msgpack:"capsule_id" storm:"index"`
	Username  string `msgpack:"recipient_username"`
}
