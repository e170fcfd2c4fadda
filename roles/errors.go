package roles

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrRootResourceForbidden is returned when a scoped entry point is called
// with the root resource. Root grants go through the dedicated root methods.
var ErrRootResourceForbidden = errors.New("root resource must be accessed through the root entry points")

// UnauthorizedError reports a caller missing role bits on a resource.
type UnauthorizedError struct {
	Resource Resource
	Missing  *uint256.Int
	Caller   common.Address
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("caller %s missing roles %s on resource %s", e.Caller.Hex(), e.Missing.Hex(), e.Resource.Hex())
}
