package kafka

// ConsumerHook receives lifecycle callbacks from the consumer, letting
// callers observe message handling without touching the hot path.
type ConsumerHook interface {
	OnMessage(topic string, partition int, offset int64)
	OnHandled(topic string, err error)
	OnDLQ(topic string, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) OnMessage(string, int, int64) {}
func (NoopHook) OnHandled(string, error)      {}
func (NoopHook) OnDLQ(string, error)          {}
