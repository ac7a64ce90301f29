// Package presence maintains the optimistic online flag on user records.
//
// There is no heartbeat or TTL: the flag flips to offline only on an explicit
// sign-out, never on disconnect or crash. An ungraceful exit leaves the user
// marked online until the next sign-out. Known accuracy gap, kept on purpose
// so observable behavior matches the rest of the system.
package presence

import (
	"context"
	"time"

	"bchat/internal/app/errbus"
	"bchat/internal/app/uow"
	domainuser "bchat/internal/domain/user"
)

type Tracker struct {
	UoW    uow.Factory
	Errors *errbus.Bus
	Now    func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) MarkOnline(ctx context.Context, id domainuser.ID) error {
	return t.set(ctx, id, true)
}

func (t *Tracker) MarkOffline(ctx context.Context, id domainuser.ID) error {
	return t.set(ctx, id, false)
}

func (t *Tracker) set(ctx context.Context, id domainuser.ID, online bool) error {
	unit, err := t.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)
	if err := unit.Users().SetPresence(ctx, id, online, t.now()); err != nil {
		return errbus.Intercept(t.Errors, err)
	}
	return errbus.Intercept(t.Errors, unit.Commit(ctx))
}
