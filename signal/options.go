package signal

// ConnectOption configures a Connect call: priority, delivery policy, and
// (for queued/automatic delivery) the target EventQueue.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	priority Priority
	delivery Delivery
	queue    *EventQueue
}

func defaultConfig() connectConfig {
	return connectConfig{priority: Normal, delivery: Direct}
}

// WithPriority sets the slot's priority; default is Normal.
func WithPriority(p Priority) ConnectOption {
	return func(c *connectConfig) { c.priority = p }
}

// WithDelivery sets the delivery policy; default is Direct.
func WithDelivery(d Delivery) ConnectOption {
	return func(c *connectConfig) { c.delivery = d }
}

// WithQueue sets the target EventQueue for Queued/Automatic delivery.
func WithQueue(q *EventQueue) ConnectOption {
	return func(c *connectConfig) { c.queue = q }
}

func applyOptions(opts []ConnectOption) connectConfig {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
