package e32

// BroadcastAddress is received by every module on the target channel.
const BroadcastAddress = 0xFFFF

// Target identifies the receiving modules of a message in fixed transmission
// mode. It is ignored in transparent mode.
type Target struct {
	Address uint16
	Channel byte
}

// Broadcast returns the target that reaches all modules on a channel.
func Broadcast(channel byte) Target {
	return Target{
		Address: BroadcastAddress,
		Channel: channel,
	}
}

// Message contains a payload sent or received over the air. Received
// messages carry no target, because the module strips it.
type Message struct {
	Target  Target
	Payload []byte
}
