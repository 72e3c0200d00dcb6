// Package delivery fans a sealed capsule out to its recipients.
package delivery

import (
	"context"
	"time"

	"github.com/lunaris/capsuled/internal/cerror"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/model"
	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultRecipientTimeout bounds the sends to a single recipient so an
// unreachable transport cannot wedge a worker.
const DefaultRecipientTimeout = 30 * time.Second

// An Executor delivers capsules. Safe to invoke concurrently for
// different capsule ids. A duplicate invocation for the same id is a
// no-op once the record is gone.
type Executor struct {
	db        database.Client
	codec     *capsule.Codec
	transport Transport
	logger    logrus.FieldLogger

	// RecipientTimeout bounds the fan-out to one recipient.
	RecipientTimeout time.Duration
	// NotifyCreator controls the completion notice sent back to the author.
	NotifyCreator bool
}

// NewExecutor returns a delivery executor.
func NewExecutor(db database.Client, codec *capsule.Codec, transport Transport, logger logrus.FieldLogger) *Executor {
	return &Executor{
		db:               db,
		codec:            codec,
		transport:        transport,
		logger:           logger,
		RecipientTimeout: DefaultRecipientTimeout,
		NotifyCreator:    true,
	}
}

// Deliver loads the capsule, unseals it and sends its content to every
// recipient, then retires the record. An absent capsule returns nil:
// it was already delivered or deleted, re-triggering is the expected
// no-op path.
func (e *Executor) Deliver(ctx context.Context, capsuleID string) error {
	log := e.logger.WithField("capsule", capsuleID)

	c, err := e.db.FindCapsule(capsuleID)
	if err != nil {
		if e.db.IsNotFound(err) {
			log.Info("capsule absent, nothing to deliver")
			return nil
		}
		return errors.Wrap(err, "could not load capsule")
	}

	// A decode failure is final for this capsule. The record stays in
	// place for operator inspection instead of being silently lost.
	bundle, err := e.codec.Unseal(c.SealedContent)
	if err != nil {
		log.WithError(err).Error("could not unseal capsule")
		return errors.Wrap(err, "could not unseal capsule")
	}

	recipients, err := e.db.FindRecipientsByCapsule(capsuleID)
	if err != nil {
		return errors.Wrap(err, "could not load recipients")
	}
	if len(recipients) == 0 {
		log.Warn("capsule has no recipients")
		return cerror.NewValidation("capsule has no recipients")
	}

	for _, recipient := range recipients {
		e.fanout(ctx, log, c, bundle, recipient)
	}

	// The fan-out has been attempted for every recipient, the delivery
	// is done even if some of them were unreachable. Recipients rows go
	// first so an interrupted delete cannot orphan the capsule id.
	if err := e.db.DeleteCapsule(capsuleID); err != nil {
		return errors.Wrap(err, "could not retire capsule")
	}
	log.Info("capsule delivered")

	if e.NotifyCreator {
		e.notifyCreator(ctx, log, c)
	}
	return nil
}

// fanout sends the capsule to a single recipient. Failures are logged
// and never block the remaining recipients.
func (e *Executor) fanout(ctx context.Context, log logrus.FieldLogger, c *model.Capsule, bundle *capsule.Bundle, recipient *model.Recipient) {
	log = log.WithField("recipient", recipient.Username)

	user, err := e.db.FindUserByUsername(recipient.Username)
	if err != nil {
		if e.db.IsNotFound(err) {
			log.Warn("recipient not registered")
		} else {
			log.WithError(err).Error("could not resolve recipient")
		}
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.RecipientTimeout)
	defer cancel()

	if err := e.transport.SendNotice(ctx, user.Address, noticeFor(c)); err != nil {
		log.WithError(err).Error("could not send delivery notice")
		return
	}

	for _, kind := range capsule.SendOrder {
		for _, ref := range bundle.Items(kind) {
			if err := send(ctx, e.transport, user.Address, kind, ref); err != nil {
				log.WithError(err).WithField("kind", kind).Error("could not send content item")
				return
			}
		}
	}
	log.Info("capsule sent")
}

func (e *Executor) notifyCreator(ctx context.Context, log logrus.FieldLogger, c *model.Capsule) {
	creator, err := e.db.FindUser(c.CreatorID)
	if err != nil {
		log.WithError(err).Warn("could not resolve creator")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.RecipientTimeout)
	defer cancel()

	if err := e.transport.SendNotice(ctx, creator.Address, "📨 Your capsule «"+c.Title+"» has been delivered."); err != nil {
		log.WithError(err).Warn("could not notify creator")
	}
}

func noticeFor(c *model.Capsule) string {
	return "🎁 You received a time capsule: «" + c.Title + "»"
}
