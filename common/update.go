package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/neo"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// CommitteeAddress returns the multisignature address of the current
// committee with the standard `N-(N-1)/2` threshold.
func CommitteeAddress() interop.Hash160 {
	committee := neo.GetCommittee()
	l := len(committee)
	return contract.CreateMultisigAccount(l-(l-1)/2, committee)
}

// HasUpdateAccess returns true if contract can be updated.
func HasUpdateAccess() bool {
	return runtime.CheckWitness(CommitteeAddress())
}
