//go:build !sqlite_cgo
// +build !sqlite_cgo

package storage

// This file is compiled by default. It uses the pure Go SQLite
// implementation and registers the vector distance function with it.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite (FTS5 is compiled in)

import (
	"database/sql/driver"
	"fmt"

	"modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

// Functions must be registered before the first connection opens;
// connections opened earlier never see them.
func init() {
	err := sqlite.RegisterDeterministicScalarFunction(DistanceFunction, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			a, okA := args[0].([]byte)
			b, okB := args[1].([]byte)
			if !okA || !okB {
				// NULL in, NULL out
				return nil, nil
			}
			d, err := cosineDistanceBlob(a, b)
			if err != nil {
				return nil, err
			}
			return d, nil
		})
	if err != nil {
		panic(fmt.Sprintf("storage: register %s: %v", DistanceFunction, err))
	}
}
