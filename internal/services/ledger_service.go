// Package services – LedgerService
//
// LedgerService owns the per-message ledger lifecycle. Every created or
// edited chat message is reduced to an amount, the (before, after) pair is
// mapped to an Action by Decide, and the action is applied to the store as a
// single statement. Mutations of one message id are serialized in-process,
// and every store call runs under a bounded timeout.
//
// Undo removes the caller's most recent entry of the current local day and
// marks the message undone, so later edits or redeliveries of it are ignored.
//
// Observability: public methods are OpenTelemetry-instrumented and every
// applied action is counted in salesbot_ledger_actions_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
	"github.com/tbourn/sales-leaderboard-bot/internal/money"
	"github.com/tbourn/sales-leaderboard-bot/internal/repo"
	"github.com/tbourn/sales-leaderboard-bot/internal/window"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStoreTimeout bounds a single ledger store call.
const DefaultStoreTimeout = 5 * time.Second

// undoAttempts bounds how often Undo re-selects after losing a race.
const undoAttempts = 3

// LedgerService applies message events and undo requests to the ledger.
type LedgerService struct {
	DB *gorm.DB

	// Ack is notified after a created message was recorded. Optional.
	Ack Acknowledger

	// Location defines the local day used by Undo.
	Location *time.Location

	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	// StoreTimeout bounds each store call; DefaultStoreTimeout when zero.
	StoreTimeout time.Duration

	locks keyLock
}

// NewLedgerService constructs a LedgerService with default timeouts.
func NewLedgerService(db *gorm.DB, loc *time.Location, ack Acknowledger) *LedgerService {
	return &LedgerService{
		DB:           db,
		Ack:          ack,
		Location:     loc,
		Now:          time.Now,
		StoreTimeout: DefaultStoreTimeout,
	}
}

// MessageCreated records the amount found in a freshly posted message.
// Re-delivered events are absorbed by the store and yield ActionNone, as do
// events for a message whose sale was undone.
func (s *LedgerService) MessageCreated(ctx context.Context, m Message) (Action, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "MessageCreated",
		trace.WithAttributes(
			attribute.String("message.id", m.MessageID),
			attribute.String("user.id", m.AuthorID),
		),
	)
	defer span.End()

	if !m.tracked() {
		return ActionNone, nil
	}
	amount := money.Extract(m.Text)
	if Decide(decimal.Zero, amount) != ActionInsert {
		return ActionNone, nil
	}

	unlock := s.locks.Lock(m.MessageID)
	inserted, undone, err := s.insert(ctx, m, amount)
	unlock()
	if err != nil {
		span.RecordError(err)
		return ActionNone, err
	}
	if undone {
		countAction("suppressed")
		return ActionNone, nil
	}
	if !inserted {
		countAction("duplicate")
		return ActionNone, nil
	}
	countAction(ActionInsert.String())
	span.SetAttributes(attribute.String("sale.amount", amount.StringFixed(2)))
	log.Ctx(ctx).Debug().
		Str("message_id", m.MessageID).
		Strs("tokens", money.Matches(m.Text)).
		Str("amount", amount.StringFixed(2)).
		Msg("sale recorded")

	if s.Ack != nil {
		if err := s.Ack.Acknowledge(ctx, m.ChannelID, m.MessageID); err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Str("message_id", m.MessageID).
				Msg("acknowledge failed")
		}
	}
	return ActionInsert, nil
}

// MessageEdited reconciles the ledger with an edited message. When the
// previous text is unknown the stored amount stands in for it. A message
// whose sale was undone is never inserted again.
func (s *LedgerService) MessageEdited(ctx context.Context, e MessageEdit) (Action, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "MessageEdited",
		trace.WithAttributes(
			attribute.String("message.id", e.MessageID),
			attribute.String("user.id", e.AuthorID),
			attribute.Bool("before.known", e.Before != nil),
		),
	)
	defer span.End()

	if !e.tracked() {
		return ActionNone, nil
	}
	after := money.Extract(e.Text)

	unlock := s.locks.Lock(e.MessageID)
	defer unlock()

	var before decimal.Decimal
	if e.Before != nil {
		before = money.Extract(*e.Before)
	} else {
		stored, err := s.storedAmount(ctx, e.MessageID)
		if err != nil {
			span.RecordError(err)
			return ActionNone, err
		}
		before = stored
	}

	act := Decide(before, after)
	span.SetAttributes(attribute.String("ledger.action", act.String()))

	var err error
	switch act {
	case ActionInsert:
		var inserted, undone bool
		inserted, undone, err = s.insert(ctx, e.Message, after)
		if undone {
			countAction("suppressed")
			log.Ctx(ctx).Debug().
				Str("message_id", e.MessageID).
				Msg("edit of an undone sale ignored")
		}
		if err == nil && !inserted {
			act = ActionNone
		}
	case ActionUpdate:
		err = s.withStore(ctx, func(ctx context.Context) error {
			_, err := repo.UpdateSaleAmount(ctx, s.DB, e.MessageID, after)
			return err
		})
	case ActionDelete:
		err = s.withStore(ctx, func(ctx context.Context) error {
			_, err := repo.DeleteSaleByMessage(ctx, s.DB, e.MessageID)
			return err
		})
	}
	if err != nil {
		span.RecordError(err)
		return ActionNone, fmt.Errorf("apply %s: %w", act, err)
	}
	if act != ActionNone {
		countAction(act.String())
	}
	return act, nil
}

// Undo deletes userID's most recent sale of the current local day and
// returns it. ErrNothingToUndo when there is none.
func (s *LedgerService) Undo(ctx context.Context, userID string) (*domain.Sale, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Undo",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrMissingUser
	}
	w := window.Day(s.now(), 0, s.Location)

	for range undoAttempts {
		var latest *domain.Sale
		err := s.withStore(ctx, func(ctx context.Context) error {
			var err error
			latest, err = repo.LatestSaleByUserInWindow(ctx, s.DB, userID, w.Start, w.End)
			return err
		})
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNothingToUndo
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("find latest sale: %w", err)
		}

		removed, err := s.removeLocked(ctx, latest.ID, latest.MessageID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if removed != nil {
			countAction("undo")
			span.SetAttributes(attribute.String("sale.amount", removed.Amount.StringFixed(2)))
			return removed, nil
		}
		// A concurrent edit deleted the row between select and lock.
	}
	return nil, ErrNothingToUndo
}

// removeLocked re-reads the sale under its message lock, deletes it by id
// and marks its message undone. A nil sale means it vanished in the meantime.
func (s *LedgerService) removeLocked(ctx context.Context, id uint64, messageID string) (*domain.Sale, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	var current *domain.Sale
	err := s.withStore(ctx, func(ctx context.Context) error {
		var err error
		current, err = repo.GetSaleByID(ctx, s.DB, id)
		return err
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload sale: %w", err)
	}

	var deleted bool
	err = s.withStore(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = repo.UndoSale(ctx, s.DB, current, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete sale: %w", err)
	}
	if !deleted {
		return nil, nil
	}
	return current, nil
}

// insert records m unless its sale was undone before. inserted is false for
// a known message id or an undone one.
func (s *LedgerService) insert(ctx context.Context, m Message, amount decimal.Decimal) (inserted, undone bool, err error) {
	err = s.withStore(ctx, func(ctx context.Context) error {
		var err error
		undone, err = repo.IsUndone(ctx, s.DB, m.MessageID)
		return err
	})
	if err != nil {
		return false, false, fmt.Errorf("check undone: %w", err)
	}
	if undone {
		return false, true, nil
	}

	sale := &domain.Sale{
		CommunityID: m.CommunityID,
		ChannelID:   m.ChannelID,
		MessageID:   m.MessageID,
		UserID:      m.AuthorID,
		Amount:      amount,
		RecordedAt:  s.now().UTC().Truncate(time.Microsecond),
	}
	err = s.withStore(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = repo.InsertSaleIfAbsent(ctx, s.DB, sale)
		return err
	})
	if err != nil {
		return false, false, fmt.Errorf("insert sale: %w", err)
	}
	return inserted, false, nil
}

func (s *LedgerService) storedAmount(ctx context.Context, messageID string) (decimal.Decimal, error) {
	var sale *domain.Sale
	err := s.withStore(ctx, func(ctx context.Context) error {
		var err error
		sale, err = repo.GetSaleByMessage(ctx, s.DB, messageID)
		return err
	})
	if errors.Is(err, repo.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load sale: %w", err)
	}
	return sale.Amount, nil
}

// withStore runs fn under the store timeout.
func (s *LedgerService) withStore(ctx context.Context, fn func(context.Context) error) error {
	d := s.StoreTimeout
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func (s *LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
