package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	req := require.New(t)
	g := New()

	release, err := g.Enter("listing:1")
	req.NoError(err)

	// nested entry on the same scope is rejected
	_, err = g.Enter("listing:1")
	req.ErrorIs(err, ErrReentrantCall)

	// unrelated scopes are not serialized
	release2, err := g.Enter("listing:2")
	req.NoError(err)
	release2()

	release()

	// released scope can be re-entered
	release, err = g.Enter("listing:1")
	req.NoError(err)
	release()
}
