package docker

import (
	"fmt"

	"github.com/docker/docker/errdefs"
	"github.com/melih/lighthouse-runner/internal/core/domain"
)

// translate maps a daemon not-found error onto domain.ErrNotFound, keeping
// the daemon message.
func translate(err error) error {
	if err != nil && errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}

// translateCreate additionally reports a container name already in use.
func translateCreate(err error) error {
	if err != nil && errdefs.IsConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrNameConflict, err)
	}
	return translate(err)
}
