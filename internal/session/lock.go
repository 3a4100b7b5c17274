package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoginInProgress means another attempt holds the domain's lock
var ErrLoginInProgress = errors.New("session: login already in progress for domain")

// Keyring hands out at most one lock per domain. Entries exist only while
// held or contended, so the map never grows with the number of domains seen.
type Keyring struct {
	mu    sync.Mutex
	locks map[string]*domainLock
}

type domainLock struct {
	ch   chan struct{}
	refs int
}

// Handle is a held domain lock. Release is idempotent.
type Handle struct {
	k      *Keyring
	l      *domainLock
	domain string
	once   sync.Once
}

func NewKeyring() *Keyring {
	return &Keyring{locks: make(map[string]*domainLock)}
}

func (k *Keyring) get(domain string) *domainLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[domain]
	if !ok {
		l = &domainLock{ch: make(chan struct{}, 1)}
		k.locks[domain] = l
	}
	l.refs++
	return l
}

func (k *Keyring) put(domain string, l *domainLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.refs--
	if l.refs <= 0 && k.locks[domain] == l {
		delete(k.locks, domain)
	}
}

// TryAcquire takes the domain's lock without waiting
func (k *Keyring) TryAcquire(domain string) (*Handle, error) {
	l := k.get(domain)
	select {
	case l.ch <- struct{}{}:
		return &Handle{k: k, l: l, domain: domain}, nil
	default:
		k.put(domain, l)
		return nil, fmt.Errorf("%w: %s", ErrLoginInProgress, domain)
	}
}

// Acquire waits for the domain's lock until ctx ends
func (k *Keyring) Acquire(ctx context.Context, domain string) (*Handle, error) {
	l := k.get(domain)
	select {
	case l.ch <- struct{}{}:
		return &Handle{k: k, l: l, domain: domain}, nil
	case <-ctx.Done():
		k.put(domain, l)
		return nil, ctx.Err()
	}
}

// Release frees the lock for the next acquirer
func (h *Handle) Release() {
	h.once.Do(func() {
		<-h.l.ch
		h.k.put(h.domain, h.l)
	})
}
