package service

type Kind string

const (
	KindCoordination Kind = "coordination"
	KindBroker       Kind = "broker"
	KindWorker       Kind = "worker"
)

func (k Kind) String() string {
	return string(k)
}
