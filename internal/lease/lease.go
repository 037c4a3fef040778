// Package lease garante que dois scans do mesmo concorrente não rodem ao mesmo tempo.
package lease

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrHeld é retornado quando outro scan já detém o lease do concorrente
	ErrHeld = errors.New("lease em uso por outro scan")

	// ErrNotHeld é retornado ao liberar um lease que já expirou ou foi tomado
	ErrNotHeld = errors.New("lease não pertence a este scan")
)

// Lease é um lease exclusivo adquirido para um concorrente
type Lease interface {
	Release(ctx context.Context) error
}

// Locker adquire leases exclusivos por concorrente, sem bloquear
type Locker interface {
	Acquire(ctx context.Context, competitorID int64) (Lease, error)
}

// LocalLocker é um Locker em memória, para uma única instância
type LocalLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewLocalLocker cria um LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[int64]struct{})}
}

// Acquire implementa Locker
func (l *LocalLocker) Acquire(ctx context.Context, competitorID int64) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[competitorID]; busy {
		return nil, ErrHeld
	}
	l.held[competitorID] = struct{}{}
	return &localLease{locker: l, competitorID: competitorID}, nil
}

type localLease struct {
	locker       *LocalLocker
	competitorID int64
	once         sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.competitorID)
		l.locker.mu.Unlock()
	})
	return nil
}
