// Package permission defers operations on capability-gated storage until the user
// has granted access to the owning root.
package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
)

// State of the gate.
type State int

const (
	Idle State = iota
	AwaitingGrant
)

func (s State) String() string {
	if s == AwaitingGrant {
		return "awaiting_grant"
	}
	return "idle"
}

// Grant outcomes reported in core.GrantEvent.
const (
	OutcomeGranted   = "granted"
	OutcomeDeclined  = "declined"
	OutcomeWrongRoot = "wrong_root"
	OutcomeCancelled = "cancelled"
)

// Request asks the host to let the user pick a storage root.
type Request struct {
	ID       string
	Kind     core.StorageKind
	RootPath string
	// Attempt counts re-issues after a wrong root was picked, starting at 1.
	Attempt int
}

// Response is the user's answer to a Request.
type Response struct {
	TreeURI  string
	Declined bool
}

// Requester presents grant requests to the user. The answer is passed back
// through Gate.Deliver, possibly before RequestGrant returns.
type Requester interface {
	RequestGrant(ctx context.Context, req Request) error
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req Request) error

// RequestGrant implements Requester
func (f RequesterFunc) RequestGrant(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// GrantStore persists at most one grant per storage kind.
type GrantStore interface {
	document.GrantSource
	SaveGrant(grant core.AccessGrant) error
}

// Roots maps a kind to the path prefix it owns.
type Roots interface {
	RootPath(kind core.StorageKind) string
}

// Options configures a Gate.
type Options struct {
	Grants    GrantStore
	Requester Requester
	Roots     Roots
	// Keeper takes persistable permissions and detects external revocation. Optional.
	Keeper document.GrantKeeper
	// Strict fails on a wrong root instead of asking again.
	Strict bool
	Bus    core.EventBus
	Logger zerolog.Logger
}

type pending struct {
	req       Request
	responses chan Response
}

// Gate serializes grant requests. Only one request is in flight at a time and
// later acquisitions queue behind it.
type Gate struct {
	opts Options
	slot chan struct{}

	mu      sync.Mutex
	current *pending
}

// NewGate creates an idle gate.
func NewGate(opts Options) *Gate {
	return &Gate{
		opts: opts,
		slot: make(chan struct{}, 1),
	}
}

// State reports whether a request is waiting for the user.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Idle
	}
	return AwaitingGrant
}

// Pending returns the request waiting for the user, if any.
func (g *Gate) Pending() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Request{}, false
	}
	return g.current.req, true
}

// HasGrant reports whether kind is usable without asking the user.
func (g *Gate) HasGrant(kind core.StorageKind) bool {
	if !kind.NeedsCapability() {
		return true
	}
	grant, ok := g.opts.Grants.Grant(kind)
	if !ok || grant.IsZero() {
		return false
	}
	if g.opts.Keeper != nil && !g.opts.Keeper.IsPersisted(grant.TreeURI) {
		return false
	}
	return true
}

// Acquire returns once kind has a live grant. Without one it asks the user and
// blocks until the answer is delivered or ctx is done.
func (g *Gate) Acquire(ctx context.Context, kind core.StorageKind) error {
	if g.HasGrant(kind) {
		return nil
	}

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	// A request queued ahead of this one may have granted the same root.
	if g.HasGrant(kind) {
		return nil
	}

	for attempt := 1; ; attempt++ {
		req := Request{
			ID:       uuid.NewString(),
			Kind:     kind,
			RootPath: g.opts.Roots.RootPath(kind),
			Attempt:  attempt,
		}
		resp, err := g.ask(ctx, req)
		if err != nil {
			return err
		}

		if resp.Declined {
			g.resolved(ctx, req, OutcomeDeclined)
			return fmt.Errorf("%w: %s access declined", core.ErrPermissionDenied, kind)
		}
		if err := document.ValidateRootTree(resp.TreeURI, kind); err != nil {
			g.resolved(ctx, req, OutcomeWrongRoot)
			g.opts.Logger.Warn().
				Str("request_id", req.ID).
				Str("kind", kind.String()).
				Str("tree_uri", resp.TreeURI).
				Msg("wrong root selected")
			if g.opts.Strict {
				return err
			}
			continue
		}

		if err := g.persist(kind, req.RootPath, resp.TreeURI); err != nil {
			return err
		}
		g.resolved(ctx, req, OutcomeGranted)
		return nil
	}
}

// Run invokes fn once kind is granted. With a live grant fn runs immediately and
// synchronously. A declined or cancelled request never runs fn.
func (g *Gate) Run(ctx context.Context, kind core.StorageKind, fn func() error) error {
	if err := g.Acquire(ctx, kind); err != nil {
		return err
	}
	return fn()
}

// Deliver answers the pending request with the given id.
func (g *Gate) Deliver(id string, resp Response) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.req.ID != id {
		return fmt.Errorf("%w: %s", core.ErrUnknownRequest, id)
	}
	g.current.responses <- resp
	g.current = nil
	return nil
}

func (g *Gate) ask(ctx context.Context, req Request) (Response, error) {
	p := &pending{req: req, responses: make(chan Response, 1)}
	g.mu.Lock()
	g.current = p
	g.mu.Unlock()

	g.opts.Logger.Debug().
		Str("request_id", req.ID).
		Str("kind", req.Kind.String()).
		Int("attempt", req.Attempt).
		Msg("requesting grant")
	core.PublishEvent(ctx, g.opts.Bus, core.EventGrantRequested, core.GrantEvent{
		RequestID: req.ID,
		Kind:      req.Kind,
	})

	if err := g.opts.Requester.RequestGrant(ctx, req); err != nil {
		g.clear(p)
		g.resolved(ctx, req, OutcomeCancelled)
		return Response{}, fmt.Errorf("failed to request %s grant: %w", req.Kind, err)
	}

	select {
	case resp := <-p.responses:
		return resp, nil
	case <-ctx.Done():
		g.clear(p)
		g.resolved(ctx, req, OutcomeCancelled)
		return Response{}, ctx.Err()
	}
}

func (g *Gate) clear(p *pending) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == p {
		g.current = nil
	}
}

func (g *Gate) persist(kind core.StorageKind, root, treeURI string) error {
	if g.opts.Keeper != nil {
		if err := g.opts.Keeper.TakePersistable(treeURI); err != nil {
			return errors.Join(core.ErrSecurityRejected, err)
		}
	}
	grant := core.AccessGrant{Kind: kind, RootPath: root, TreeURI: treeURI}
	if err := g.opts.Grants.SaveGrant(grant); err != nil {
		return fmt.Errorf("failed to save %s grant: %w", kind, err)
	}
	return nil
}

func (g *Gate) resolved(ctx context.Context, req Request, outcome string) {
	g.opts.Logger.Debug().
		Str("request_id", req.ID).
		Str("kind", req.Kind.String()).
		Str("outcome", outcome).
		Msg("grant request resolved")
	core.PublishEvent(ctx, g.opts.Bus, core.EventGrantResolved, core.GrantEvent{
		RequestID: req.ID,
		Kind:      req.Kind,
		Outcome:   outcome,
	})
}
