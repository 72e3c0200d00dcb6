package main

import (
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/model"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

// Operator escape hatch: drops a capsule and its recipients by id,
// typically one left in place after a decode failure.
func main() {
	c := &coral.Command{
		Use:   "rmcapsule",
		Short: "Remove a capsule from the database",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			//
			//
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], database.StormCodec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			// Fetch capsule
			var capsule model.Capsule
			err = db.One("ID", args[1], &capsule)
			if err != nil {
				if err == storm.ErrNotFound {
					fmt.Println("No capsule for this id")
					return nil
				}
				return errors.Wrap(err, "find capsule by id")
			}

			// Recipients first so an interrupted run leaves orphaned
			// recipients rather than a dangling capsule id.
			err = db.Select(q.Eq("CapsuleID", capsule.ID)).Delete(&model.Recipient{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "could not delete recipients")
			}

			if err := db.DeleteStruct(&capsule); err != nil {
				return errors.Wrap(err, "could not delete capsule")
			}

			fmt.Printf("Capsule %s (#%d %q) removed\n", capsule.ID, capsule.Number, capsule.Title)
			return nil
		},
	}

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
