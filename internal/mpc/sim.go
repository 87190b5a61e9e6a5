package mpc

import (
	"fmt"
	"sync"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

// Simulator is an in-process Engine that computes on plaintext values. Every
// submission and computation becomes a pending round; rounds resolve only
// when the caller steps the simulator, so tests can decouple readiness order
// from submission order the way a real engine does.
type Simulator struct {
	mu       sync.Mutex
	operator abi.Address
	nextID   SecretVarId
	vars     map[SecretVarId]*variable
	order    []SecretVarId
	rounds   []*round
}

type variable struct {
	kind     VariableKind
	owner    abi.Address
	data     []byte
	resolved bool
	opened   bool
	deleted  bool
	// retirement is deferred while pending rounds still read the variable
	pendingUses int
	retiring    bool
}

type round struct {
	inputs  []SecretVarId
	outputs []SecretVarId
	exec    func() error
	done    bool
}

// NewSimulator creates a simulator. The operator address is additionally
// authorized to reconstruct contract-owned variables, standing in for the
// backend's API keypair.
func NewSimulator(operator abi.Address) *Simulator {
	return &Simulator{
		operator: operator,
		nextID:   1,
		vars:     make(map[SecretVarId]*variable),
	}
}

func (s *Simulator) allocate(kind VariableKind, owner abi.Address) SecretVarId {
	id := s.nextID
	s.nextID++
	s.vars[id] = &variable{kind: kind, owner: owner}
	s.order = append(s.order, id)
	return id
}

func (s *Simulator) SubmitSecretInput(owner abi.Address, kind VariableKind, secret []byte) (SecretVarId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocate(kind, owner)
	data := make([]byte, len(secret))
	copy(data, secret)
	s.rounds = append(s.rounds, &round{
		outputs: []SecretVarId{id},
		exec: func() error {
			s.vars[id].data = data
			return nil
		},
	})
	return id, nil
}

func (s *Simulator) load(id SecretVarId) (*variable, error) {
	v, ok := s.vars[id]
	if !ok || v.deleted {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariable, id)
	}
	return v, nil
}

func (s *Simulator) loadResolved(id SecretVarId) (*variable, error) {
	v, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !v.resolved {
		return nil, fmt.Errorf("%w: %d", ErrUnresolved, id)
	}
	return v, nil
}

func (s *Simulator) Resolved(id SecretVarId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[id]
	return ok && !v.deleted && v.resolved
}

func (s *Simulator) Reveal(id SecretVarId) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.loadResolved(id)
	if err != nil {
		return nil, err
	}
	if !v.opened {
		return nil, fmt.Errorf("%w: %d", ErrNotOpened, id)
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, nil
}

func (s *Simulator) FetchSecretVariable(requester abi.Address, id SecretVarId) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.loadResolved(id)
	if err != nil {
		return nil, err
	}
	if v.owner != requester && requester != s.operator {
		return nil, fmt.Errorf("%w: %d", ErrNotAuthorized, id)
	}
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out, nil
}

// DeleteVariables retires variables. A variable still read by a pending
// computation round is retired once that round completes.
func (s *Simulator) DeleteVariables(ids []SecretVarId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		v, ok := s.vars[id]
		if !ok {
			continue
		}
		if v.pendingUses > 0 {
			v.retiring = true
		} else {
			v.deleted = true
		}
	}
	return nil
}

// CompleteNext resolves the oldest pending round. It returns false when no
// round is pending.
func (s *Simulator) CompleteNext() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.done {
			continue
		}
		return true, s.complete(r)
	}
	return false, nil
}

// CompleteAll resolves every pending round in submission order.
func (s *Simulator) CompleteAll() error {
	for {
		more, err := s.CompleteNext()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// CompleteVariable resolves the round producing id, regardless of submission
// order. The round's own inputs must already be resolved.
func (s *Simulator) CompleteVariable(id SecretVarId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.done {
			continue
		}
		for _, out := range r.outputs {
			if out == id {
				return s.complete(r)
			}
		}
	}
	return fmt.Errorf("%w: no pending round for %d", ErrUnknownVariable, id)
}

func (s *Simulator) complete(r *round) error {
	if err := r.exec(); err != nil {
		return err
	}
	for _, id := range r.outputs {
		s.vars[id].resolved = true
	}
	for _, id := range r.inputs {
		v := s.vars[id]
		v.pendingUses--
		if v.retiring && v.pendingUses == 0 {
			v.deleted = true
		}
	}
	r.done = true
	return nil
}
