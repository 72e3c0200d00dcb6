package database

import (
	"github.com/lunaris/capsuled/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		UserInteraction
		CapsuleInteraction
		RecipientInteraction
	}

	// An UserInteraction defines all the methods used to interact with a user record.
	UserInteraction interface {
		// FindUser returns the user for the given id (UUID).
		FindUser(id string) (*model.User, error)
		// FindUserByHandle returns the user for the given transport account id.
		FindUserByHandle(handle string) (*model.User, error)
		// FindUserByUsername returns the user for the given public username.
		FindUserByUsername(username string) (*model.User, error)
	}

	// A CapsuleInteraction defines all the methods used to interact with a capsule record.
	CapsuleInteraction interface {
		// FindCapsule returns the capsule for the given id (UUID).
		FindCapsule(id string) (*model.Capsule, error)
		// FindCapsuleByNumber returns the creator's capsule with the given ordinal.
		FindCapsuleByNumber(creatorID string, number int) (*model.Capsule, error)
		// FindCapsulesByCreator returns all capsules of the given creator, oldest first.
		FindCapsulesByCreator(creatorID string) ([]*model.Capsule, error)
		// FindScheduledCapsules returns every capsule with a delivery time set.
		FindScheduledCapsules() ([]*model.Capsule, error)
		// NextCapsuleNumber returns the next free ordinal for the creator.
		// Ordinals grow monotonically, a deleted capsule's number is
		// never handed out again while a higher one exists.
		NextCapsuleNumber(creatorID string) (int, error)
		// DeleteCapsule removes the capsule and its recipient rows.
		// Recipients are removed first so an interrupted delete leaves
		// orphaned recipients rather than a recipient-less capsule.
		DeleteCapsule(id string) error
	}

	// A RecipientInteraction defines all the methods used to interact with recipient records.
	RecipientInteraction interface {
		// FindRecipientsByCapsule returns all recipients of the given capsule.
		FindRecipientsByCapsule(capsuleID string) ([]*model.Recipient, error)
	}
)
