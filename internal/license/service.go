package license

// Service bundles key issuance and the state machine into the single
// owner-facing surface the transport layer consumes.
type Service struct {
	*KeyGenerator
	*StateMachine
}

// NewService creates the combined service.
func NewService(keygen *KeyGenerator, sm *StateMachine) *Service {
	return &Service{KeyGenerator: keygen, StateMachine: sm}
}
