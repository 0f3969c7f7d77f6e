package cheer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/feed"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/logger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

const (
	DefaultMaxPoints = 100
	maxMessageLength = 1000
	maxCommentLength = 1000
)

// Publisher receives live feed events after their operation has committed.
type Publisher interface {
	Publish(ctx context.Context, event feed.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, feed.Event) {}

// Service is the recognition engine and the social layer on top of it.
type Service struct {
	store     Store
	ledger    *ledger.Service
	publisher Publisher
	maxPoints int64
}

func NewService(store Store, ledgerSvc *ledger.Service, publisher Publisher, maxPoints int64) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Service{store: store, ledger: ledgerSvc, publisher: publisher, maxPoints: maxPoints}
}

// RecognizeInput is one peer recognition request.
type RecognizeInput struct {
	From    string
	To      string
	Points  int64
	Message string
}

func (in *RecognizeInput) normalize(maxPoints int64) error {
	in.Message = strings.TrimSpace(in.Message)

	if err := ledger.ValidateAccount(in.From); err != nil {
		return err
	}
	if err := ledger.ValidateAccount(in.To); err != nil {
		return err
	}
	if in.Points <= 0 {
		return ledger.ErrInvalidAmount
	}
	if in.Points > maxPoints {
		return fmt.Errorf("%w: max %d", ErrAmountAboveLimit, maxPoints)
	}
	if in.From == in.To {
		return ErrSelfRecognition
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Recognition is the outcome of a committed recognition.
type Recognition struct {
	Cheer          *Cheer `json:"cheer"`
	QuotaRemaining int64  `json:"quota_remaining"`
}

// Recognize moves points from the giver's monthly quota to the receiver's
// spendable balance and records the cheer with its paired ledger entries,
// all in one unit of work.
func (s *Service) Recognize(ctx context.Context, in RecognizeInput) (*Recognition, error) {
	if err := in.normalize(s.maxPoints); err != nil {
		metrics.Recognitions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	ok, giver, err := s.ledger.CanGive(ctx, in.From, in.Points)
	if err != nil {
		metrics.Recognitions.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		metrics.Recognitions.WithLabelValues("quota_exceeded").Inc()
		return nil, &ledger.QuotaExceededError{
			Requested: in.Points,
			Remaining: giver.QuotaRemaining(),
			Allotment: giver.QuotaAllotment,
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInternal, err)
	}
	c := &Cheer{
		ID:          id,
		FromAccount: in.From,
		ToAccount:   in.To,
		Points:      in.Points,
		Message:     in.Message,
		CreatedAt:   s.ledger.Now(),
	}

	var remaining int64
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := s.ledger.LockBalances(ctx, tx, in.From, in.To)
		if err != nil {
			return err
		}
		from, to := locked[in.From], locked[in.To]

		if err := s.ledger.ConsumeQuota(ctx, tx, from, in.Points); err != nil {
			return err
		}
		if err := s.ledger.CreditPoints(ctx, tx, to, in.Points); err != nil {
			return err
		}
		if err := tx.InsertCheer(ctx, c); err != nil {
			return fmt.Errorf("insert cheer: %w", err)
		}
		if _, _, err := s.ledger.AppendTransferPair(ctx, tx, ledger.Transfer{
			From:        in.From,
			To:          in.To,
			Amount:      in.Points,
			Message:     in.Message,
			Description: fmt.Sprintf("Cheer from %s to %s", in.From, in.To),
			CheerID:     &c.ID,
		}); err != nil {
			return err
		}
		remaining = from.QuotaRemaining()
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, ledger.ErrQuotaExceeded) {
			result = "quota_exceeded"
		}
		metrics.Recognitions.WithLabelValues(result).Inc()
		return nil, err
	}

	metrics.Recognitions.WithLabelValues("ok").Inc()
	logger.FromContext(ctx).Info().
		Str("cheer_id", c.ID.String()).
		Str("from_account", c.FromAccount).
		Str("to_account", c.ToAccount).
		Int64("points", c.Points).
		Msg("Cheer recorded")

	s.publisher.Publish(ctx, feed.Event{
		Type:    feed.EventCheerCreated,
		CheerID: c.ID,
		Actor:   c.FromAccount,
		Data:    c,
		At:      c.CreatedAt,
	})

	return &Recognition{Cheer: c, QuotaRemaining: remaining}, nil
}
