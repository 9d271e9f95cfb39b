package ranger

import (
	"github.com/horockey/ranger/internal/gateway/node_data_source"
	"github.com/horockey/ranger/internal/gateway/service_data_source"
	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry"
	"github.com/horockey/ranger/internal/selector"
	"github.com/horockey/ranger/internal/signal"
	"github.com/horockey/ranger/internal/updater"
)

type (
	Service                 = model.Service
	Node[T any]             = model.Node[T]
	HealthcheckStatus       = model.HealthcheckStatus
	Deserializer[T any]     = model.Deserializer[T]
	DeserializerFunc[T any] = model.DeserializerFunc[T]

	NodeDataSource[T any]        = node_data_source.NodeDataSource[T]
	NodeDataSourceFactory[T any] = node_data_source.Factory[T]
	ServiceDataSource            = service_data_source.ServiceDataSource

	Registry[T any]        = service_registry.Registry[T]
	RegistryFactory[T any] = service_registry.Factory[T]
	RegistryUpdater[T any] = updater.Updater[T]

	Signal                  = signal.Signal
	SignalConsumer          = signal.Consumer
	SignalRunner            = signal.Runner
	ScheduledSignal         = signal.ScheduledSignal
	ExternalTriggeredSignal = signal.ExternalTriggeredSignal

	Criteria[T any] = selector.Criteria[T]
	Selector[T any] = selector.Selector[T]
)

const (
	HealthcheckStatusHealthy   = model.HealthcheckStatusHealthy
	HealthcheckStatusUnhealthy = model.HealthcheckStatusUnhealthy
	HealthcheckStatusUnknown   = model.HealthcheckStatusUnknown
)

func JSONDeserializer[T any]() Deserializer[T] {
	return model.JSONDeserializer[T]()
}

func NewRoundRobinSelector[T any]() Selector[T] {
	return selector.NewRoundRobin[T]()
}

func NewRandomSelector[T any]() Selector[T] {
	return selector.Random[T]{}
}
