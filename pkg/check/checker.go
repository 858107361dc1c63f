package check

import "context"

// Func is the body of a check. It returns human-readable detail lines on
// success and an error on failure; the runner turns either into a Result.
//
// Implementations:
//   - chaincheck: JSON-RPC reads against a blockchain node
//   - cdsecheck: OAuth2 token and STAC listings on Copernicus CDSE
//   - earthdatacheck: CMR collection metadata on NASA Earthdata
//   - netcheck: TCP reachability of a service host
type Func func(ctx context.Context) ([]string, error)

// Definition names a check and carries everything the runner needs to
// execute it. Definitions are built once per run and never modified.
type Definition struct {
	Name string
	// Missing lists configuration keys the check needs but that are unset.
	// A definition with missing keys is skipped without calling Run.
	Missing []string
	Run     Func
}
