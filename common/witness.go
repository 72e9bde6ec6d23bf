package common

import "github.com/nspcc-dev/neo-go/pkg/interop/runtime"

var (
	// ErrCommitteeWitness appears when the method must be called by the
	// committee but was not.
	ErrCommitteeWitness = "not witnessed by committee"
	// ErrOwnerWitnessFailed appears when the method must be called
	// by an owner of some assets but was not.
	ErrOwnerWitnessFailed = "owner witness check failed"
	// ErrWitnessFailed appears when the method must be called
	// using certain public key but was not.
	ErrWitnessFailed = "witness check failed"
)

// CheckCommittee panics with ErrCommitteeWitness if the invocation is not
// witnessed by the committee multisignature.
func CheckCommittee() {
	committee := CommitteeAddress()
	if committee == nil || !runtime.CheckWitness(committee) {
		panic(ErrCommitteeWitness)
	}
}
