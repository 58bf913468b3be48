package exitcodes

import (
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func TestDefaultTaxonomy(t *testing.T) {
	tf.UnitTest(t)

	tax := NewDefaultTaxonomy()
	require.NoError(t, tax.Validate())

	assert.Equal(t, Success, tax.Classify(exitcode.Ok))
	assert.Equal(t, Syscall, tax.Classify(exitcode.SysErrInsufficientFunds))
	assert.Equal(t, Syscall, tax.Classify(exitcode.SysErrInvalidReceiver))
	assert.Equal(t, Fatal, tax.Classify(exitcode.SysErrOutOfGas))
	assert.Equal(t, Application, tax.Classify(exitcode.ErrIllegalArgument))
	assert.Equal(t, Application, tax.Classify(exitcode.FirstActorSpecificExitCode))
	assert.Equal(t, Unknown, tax.Classify(exitcode.ExitCode(-1)))

	assert.True(t, tax.IsSyscall(exitcode.SysErrOutOfGas))
	assert.False(t, tax.IsSyscall(exitcode.ErrForbidden))
}

func TestTaxonomyIsConfigurable(t *testing.T) {
	tf.UnitTest(t)

	tax := &Taxonomy{SyscallMin: 1, SyscallMax: 31, ActorMin: 32, Fatal: []int64{7, 20}}
	require.NoError(t, tax.Validate())

	assert.Equal(t, Syscall, tax.Classify(exitcode.ErrIllegalArgument))
	assert.Equal(t, Fatal, tax.Classify(exitcode.ExitCode(20)))
	assert.Equal(t, Application, tax.Classify(exitcode.ExitCode(32)))
}

func TestTaxonomyValidate(t *testing.T) {
	tf.UnitTest(t)

	tax := &Taxonomy{SyscallMin: 0, SyscallMax: 20, ActorMin: 16, Fatal: []int64{0}}
	err := tax.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syscallMin")
	assert.Contains(t, err.Error(), "actorMin")
	assert.Contains(t, err.Error(), "success cannot be fatal")
}
