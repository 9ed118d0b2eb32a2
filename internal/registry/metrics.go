package registry

// Metrics is a minimal hook surface for registry observations.
type Metrics interface {
	ConnAdmitted(total int)
	ConnRemoved(total int)
	ChannelGauge(total int)
	Delivered(status DeliveryStatus)
	Evicted()
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ConnAdmitted(int)          {}
func (NoopMetrics) ConnRemoved(int)           {}
func (NoopMetrics) ChannelGauge(int)          {}
func (NoopMetrics) Delivered(DeliveryStatus)  {}
func (NoopMetrics) Evicted()                  {}
