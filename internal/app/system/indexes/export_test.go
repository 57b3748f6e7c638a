package indexes

import "go.mongodb.org/mongo-driver/mongo"

// Test-only exports for the external indexes_test package, which cannot live
// in package indexes because testutil imports indexes.

type CollectionIndexes struct {
	Name   string
	Models []mongo.IndexModel
}

func All() []CollectionIndexes {
	var out []CollectionIndexes
	for _, ci := range all() {
		out = append(out, CollectionIndexes{Name: ci.name, Models: ci.models})
	}
	return out
}

var (
	ListExisting      = listExisting
	KeySig            = keySig
	IsDuplicateKeyErr = isDuplicateKeyErr
)
