package live

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/models"
)

// SessionWatcher is the part of the session store the binder needs.
type SessionWatcher interface {
	Snapshot() models.Snapshot
	Watch(fn func(models.Snapshot)) (cancel func())
}

type binder struct {
	ch     *Channel
	logger *zap.Logger

	mu sync.Mutex
	// epoch of the session state last applied; every login, register and
	// restore starts a new one
	epoch  uint64
	bound  int64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Bind keeps ch connected for whichever identity the session holds. Each
// new authentication, including a re-login as the same user, closes the
// old connection and dials a fresh one; no identity closes the channel
// before the watch callback returns. The returned stop unregisters and
// closes the channel.
func Bind(sess SessionWatcher, ch *Channel, logger *zap.Logger) (stop func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &binder{ch: ch, logger: logger}

	unwatch := sess.Watch(b.apply)
	b.apply(sess.Snapshot())

	var once sync.Once
	return func() {
		once.Do(func() {
			unwatch()
			b.mu.Lock()
			b.disconnectLocked()
			b.mu.Unlock()
			b.wg.Wait()
		})
	}
}

func (b *binder) apply(snap models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if snap.Epoch < b.epoch {
		return
	}
	fresh := snap.Epoch != b.epoch
	b.epoch = snap.Epoch

	if snap.Identity == nil {
		if b.bound != 0 {
			b.logger.Debug("identity cleared, closing live channel", zap.Int64("user_id", b.bound))
			b.disconnectLocked()
		}
		return
	}
	if !fresh && b.bound == snap.Identity.ID {
		return
	}

	b.disconnectLocked()
	id := snap.Identity.ID
	b.bound = id
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.ch.Connect(ctx, id)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrSuperseded) {
			b.logger.Warn("live channel unavailable", zap.Int64("user_id", id), zap.Error(err))
		}
	}()
}

func (b *binder) disconnectLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.bound = 0
	_ = b.ch.Close()
}
