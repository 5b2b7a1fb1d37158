package pake

import "github.com/ndnob/onboard/pkg/ndnname"

// Verb components distinguish the three onboarding Interest types under a
// session's sub-namespace, mirroring getPakeComponent/getConfirmComponent
// /getCredentialComponent in the original.
var (
	verbPake       = ndnname.Generic("pake")
	verbConfirm    = ndnname.Generic("confirm")
	verbCredential = ndnname.Generic("credential")
)

// requestName builds prefix/session-id/verb, the name every onboarding
// Interest carries before its trailing parameters-digest component is
// appended by packet.NewInterest.
func requestName(onboardingPrefix ndnname.Name, sessionID, verb ndnname.Component) ndnname.Name {
	return onboardingPrefix.Append(sessionID, verb)
}

// computeTempSubjectName derives the Device's temporary identity: the
// authenticator certificate's packet name with its trailing two
// components stripped (its own identity/keyid suffix, not modeled here
// beyond component count) followed by all components of the device
// name. Both Authenticator and Device compute this independently and
// must agree, which handleConfirmResponse verifies directly.
func computeTempSubjectName(authenticatorCertName, deviceName ndnname.Name) ndnname.Name {
	n := authenticatorCertName.Len() - 2
	if n < 0 {
		n = 0
	}
	base := authenticatorCertName.Prefix(n)
	return base.Append(deviceName.Components()...)
}
