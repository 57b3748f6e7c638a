// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratadrive/internal/app/system/blob"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown.
type DBDeps struct {
	// MongoDB client and database (metadata, sessions' users, GridFS)
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Blobs holds file content: GridFS, or a WAFFLE local/S3 store.
	Blobs blob.Store
}
