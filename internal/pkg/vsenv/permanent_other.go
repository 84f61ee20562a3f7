//go:build !windows

package vsenv

import (
	"errors"
	"fmt"
)

// SetPermanentEnv is only available on Windows.
func SetPermanentEnv(env Env) error {
	return fmt.Errorf("permanent environment variables: %w", errors.ErrUnsupported)
}
