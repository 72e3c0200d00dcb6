package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/lunaris/capsuled/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.User{}); err != nil {
		return errors.Wrap(err, "could not init user index")
	}

	if err := db.Init(&model.Capsule{}); err != nil {
		return errors.Wrap(err, "could not init capsule index")
	}

	err = db.Init(&model.Recipient{})
	return errors.Wrap(err, "could not init recipient index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.User{}); err != nil {
		return errors.Wrap(err, "could not ReIndex users")
	}

	if err := db.ReIndex(&model.Capsule{}); err != nil {
		return errors.Wrap(err, "could not ReIndex capsules")
	}

	err = db.ReIndex(&model.Recipient{})
	return errors.Wrap(err, "could not ReIndex recipients")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindUser returns the user for the given id (UUID).
func (c *strm) FindUser(id string) (*model.User, error) {
	var user model.User
	if err := c.db.One("ID", id, &user); err != nil {
		return nil, errors.Wrap(err, "find user by id")
	}
	return &user, nil
}

// FindUserByHandle returns the user for the given transport account id.
func (c *strm) FindUserByHandle(handle string) (*model.User, error) {
	var user model.User
	if err := c.db.One("Handle", handle, &user); err != nil {
		return nil, errors.Wrap(err, "find user by handle")
	}
	return &user, nil
}

// FindUserByUsername returns the user for the given public username.
func (c *strm) FindUserByUsername(username string) (*model.User, error) {
	var user model.User
	if err := c.db.One("Username", username, &user); err != nil {
		return nil, errors.Wrap(err, "find user by username")
	}
	return &user, nil
}

// FindCapsule returns the capsule for the given id (UUID).
func (c *strm) FindCapsule(id string) (*model.Capsule, error) {
	var capsule model.Capsule
	if err := c.db.One("ID", id, &capsule); err != nil {
		return nil, errors.Wrap(err, "could not find capsule")
	}
	return &capsule, nil
}

// FindCapsuleByNumber returns the creator's capsule with the given ordinal.
func (c *strm) FindCapsuleByNumber(creatorID string, number int) (*model.Capsule, error) {
	var capsule model.Capsule
	err := c.db.Select(q.Eq("CreatorID", creatorID), q.Eq("Number", number)).First(&capsule)
	if err != nil {
		return nil, errors.Wrap(err, "could not find capsule by number")
	}
	return &capsule, nil
}

// FindCapsulesByCreator returns all capsules of the given creator, oldest first.
func (c *strm) FindCapsulesByCreator(creatorID string) ([]*model.Capsule, error) {
	capsules := make([]*model.Capsule, 0)
	err := c.db.Select(q.Eq("CreatorID", creatorID)).OrderBy("Number").Find(&capsules)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find capsules by creator")
	}
	return capsules, nil
}

// FindScheduledCapsules returns every capsule with a delivery time set.
// Drafts keep a nil ScheduledAt and are filtered out here.
func (c *strm) FindScheduledCapsules() ([]*model.Capsule, error) {
	capsules := make([]*model.Capsule, 0)
	err := c.db.All(&capsules)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find scheduled capsules")
	}

	scheduled := capsules[:0]
	for _, capsule := range capsules {
		if capsule.ScheduledAt != nil {
			scheduled = append(scheduled, capsule)
		}
	}
	return scheduled, nil
}

// NextCapsuleNumber returns the next free ordinal for the creator,
// one past the highest number still stored. Counting rows instead
// would recycle the ordinal of a deleted capsule and break selection
// by number.
func (c *strm) NextCapsuleNumber(creatorID string) (int, error) {
	var capsule model.Capsule
	err := c.db.Select(q.Eq("CreatorID", creatorID)).OrderBy("Number").Reverse().First(&capsule)
	if err != nil {
		if c.IsNotFound(err) {
			return 1, nil
		}
		return 0, errors.Wrap(err, "could not allocate capsule number")
	}
	return capsule.Number + 1, nil
}

// DeleteCapsule removes the capsule and its recipient rows, recipients first.
func (c *strm) DeleteCapsule(id string) error {
	err := c.db.Select(q.Eq("CapsuleID", id)).Delete(&model.Recipient{})
	if err != nil && !c.IsNotFound(err) {
		return errors.Wrap(err, "could not delete recipients")
	}

	err = c.db.Select(q.Eq("ID", id)).Delete(&model.Capsule{})
	if err != nil && !c.IsNotFound(err) {
		return errors.Wrap(err, "could not delete capsule")
	}
	return nil
}

// FindRecipientsByCapsule returns all recipients of the given capsule.
func (c *strm) FindRecipientsByCapsule(capsuleID string) ([]*model.Recipient, error) {
	recipients := make([]*model.Recipient, 0)
	err := c.db.Select(q.Eq("CapsuleID", capsuleID)).OrderBy("CreatedAt").Find(&recipients)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find recipients by capsule")
	}
	return recipients, nil
}
