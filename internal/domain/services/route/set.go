package route

import (
	"context"
	"fmt"
	"time"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
)

// Set holds the configured routes
type Set struct {
	routes map[Kind]*Route
}

func NewSet(routes ...*Route) *Set {
	s := &Set{routes: make(map[Kind]*Route, len(routes))}
	for _, r := range routes {
		s.routes[r.kind] = r
	}
	return s
}

// Get returns the route named kind.
func (s *Set) Get(kind Kind) (*Route, error) {
	r, ok := s.routes[kind]
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("route %s is not configured", kind))
	}
	return r, nil
}

// ForProtocol returns a route that can resume and complete transfers made
// with protocol. Standard and fast v2 transfers complete the same way.
func (s *Set) ForProtocol(protocol entities.Protocol) (*Route, error) {
	for _, k := range Kinds {
		if r, ok := s.routes[k]; ok && k.Protocol() == protocol {
			return r, nil
		}
	}
	return nil, domainerrors.ConfigurationError(fmt.Sprintf("no route for %s", protocol))
}

// All returns the routes in Kinds order.
func (s *Set) All() []*Route {
	out := make([]*Route, 0, len(s.routes))
	for _, k := range Kinds {
		if r, ok := s.routes[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Kinds lists the configured route kinds.
func (s *Set) Kinds() []Kind {
	out := make([]Kind, 0, len(s.routes))
	for _, r := range s.All() {
		out = append(out, r.kind)
	}
	return out
}

// Quote prices req on the route named kind.
func (s *Set) Quote(ctx context.Context, kind Kind, req entities.TransferRequest) (*entities.QuoteResult, error) {
	r, err := s.Get(kind)
	if err != nil {
		return nil, err
	}
	return r.Quote(ctx, req)
}

// Resume rebuilds the receipt for tx on a route serving protocol.
func (s *Set) Resume(ctx context.Context, protocol entities.Protocol, tx entities.TransactionID) (entities.TransferReceipt, error) {
	r, err := s.ForProtocol(protocol)
	if err != nil {
		return entities.TransferReceipt{}, err
	}
	return r.Resume(ctx, tx)
}

// Track follows receipt on a route serving its protocol.
func (s *Set) Track(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration, updates chan<- entities.TransferReceipt) (entities.TransferReceipt, error) {
	r, err := s.ForProtocol(receipt.Protocol)
	if err != nil {
		return receipt, err
	}
	return r.Track(ctx, receipt, timeout, updates)
}

// Wait blocks until background work on every route has finished.
func (s *Set) Wait(ctx context.Context) error {
	for _, r := range s.All() {
		if err := r.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
