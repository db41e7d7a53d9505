package services

// Observer receives relay lifecycle events for instrumentation. The
// prometheus collector implements it; tests use NopObserver.
type Observer interface {
	PeerRegistered(deviceType string)
	PeerDisconnected()
	MessageForwarded(msgType string)
	MessageQueued(msgType string)
	OfflineDelivered(count int)
	OfflineExpired(count int)
	ConnectionTerminated()
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) PeerRegistered(string)   {}
func (NopObserver) PeerDisconnected()       {}
func (NopObserver) MessageForwarded(string) {}
func (NopObserver) MessageQueued(string)    {}
func (NopObserver) OfflineDelivered(int)    {}
func (NopObserver) OfflineExpired(int)      {}
func (NopObserver) ConnectionTerminated()   {}
