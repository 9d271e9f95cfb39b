package signal

var _ Signal = &ExternalTriggeredSignal{}

// ExternalTriggeredSignal fires whenever Trigger is called.
type ExternalTriggeredSignal struct {
	consumers
}

func NewExternalTriggeredSignal() *ExternalTriggeredSignal {
	return &ExternalTriggeredSignal{}
}

func (s *ExternalTriggeredSignal) Trigger() {
	s.notify()
}
