package model

// A User represents a registered transport account.
//
// Handle is the stable account identifier given by the transport.
// Username is the mutable public name recipients are addressed by;
// it can be empty or change at any time. Address is where the
// transport delivers messages for this user.
type User struct {
	Base `msgpack:",inline" storm:"inline"`

	Handle   string `msgpack:"handle"   storm:"unique"`
	Username string `msgpack:"username" storm:"index"`
	Address  string `msgpack:"address"`
}
