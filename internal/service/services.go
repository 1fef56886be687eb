package service

// Services bundles the service layer for handler wiring. The gateway is
// constructed first so the session manager can emit presence events through
// it; the snapshot service then reads presence back from the manager.
type Services struct {
	gateway   Gateway
	snapshots SnapshotService
}

func NewServices(gateway Gateway, snapshots SnapshotService) *Services {
	return &Services{
		gateway:   gateway,
		snapshots: snapshots,
	}
}

func (s *Services) Gateway() Gateway {
	return s.gateway
}

func (s *Services) Snapshots() SnapshotService {
	return s.snapshots
}
