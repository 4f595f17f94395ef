package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task ids use the 12-byte ObjectID layout rendered as 24 lowercase hex
// characters, whichever store holds the record.

func NewTaskID() string {
	return primitive.NewObjectID().Hex()
}

// ParseTaskID checks the id format and returns its canonical form.
func ParseTaskID(id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", ErrInvalidTaskID
	}
	return oid.Hex(), nil
}
