package pake

import (
	"time"

	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/credentials"
	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/face"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/packet"
	"github.com/ndnob/onboard/pkg/pending"
	"github.com/ndnob/onboard/pkg/session"
	"github.com/ndnob/onboard/pkg/spake2"
)

// Device states, mirroring original_source's ndnob::pake::Device::State.
const (
	DeviceIdle = iota
	DeviceWaitPakeRequest
	DeviceWaitConfirmRequest
	DeviceFetchCaProfile
	DeviceWaitCaProfile
	DeviceFetchAuthenticatorCert
	DeviceWaitAuthenticatorCert
	DeviceWaitCredentialRequest
	DeviceFetchTempCert
	DeviceWaitTempCert
	DeviceSuccess
	DeviceFailure
)

// DeviceOptions configures a Device.
type DeviceOptions struct {
	Face             face.Face
	OnboardingPrefix ndnname.Name
	DeviceName       ndnname.Name
	LoggerFactory    logging.LoggerFactory
}

// Device runs the onboarding protocol's responder side: it waits for an
// Authenticator to initiate PAKE, then fetches and validates the CA
// profile and authenticator certificate, mints a temporary key pair
// bound to a deterministic subject name, and waits for the issued
// credential to be fetchable before signaling success.
type Device struct {
	face             face.Face
	onboardingPrefix ndnname.Name
	deviceName       ndnname.Name
	log              logging.LeveledLogger

	state int

	spake2Ctx *spake2.Context
	session   session.Session
	pending   pending.Tracker

	caProfileName         ndnname.Name
	authenticatorCertName ndnname.Name
	caProfile             *credentials.CaProfile

	lastInterestName     ndnname.Name
	lastInterestEndpoint string
	lastInterestToken    uint64

	tempKey      *crypto.ECKeyPair
	tempSubject  ndnname.Name
	tempCertName ndnname.Name

	// IssuedCert is set once the Authenticator's issued temp certificate
	// has been fetched. Persisting it is left to the host; the core
	// never writes it to storage.
	IssuedCert []byte

	// Now defaults to time.Now; overridable for deterministic tests of
	// certificate validity checks.
	Now func() time.Time
}

// NewDevice constructs a Device and registers its packet handlers on the
// given Face.
func NewDevice(opts DeviceOptions) *Device {
	d := &Device{
		face:             opts.Face,
		onboardingPrefix: opts.OnboardingPrefix,
		deviceName:       opts.DeviceName,
		state:            DeviceIdle,
	}
	if opts.LoggerFactory != nil {
		d.log = opts.LoggerFactory.NewLogger("pake.device")
	}
	d.face.RegisterHandler(d.processInterest, d.processData)
	return d
}

func (d *Device) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// State returns the device's current state.
func (d *Device) State() int { return d.state }

// Begin resets the device and starts waiting for a PAKE request, using
// password as the shared onboarding secret.
func (d *Device) Begin(password []byte) error {
	d.End()
	w0 := spake2.DeriveW0(password, passwordSalt, passwordIterations)
	ctx, err := spake2.NewContext(spake2.RoleResponder, w0)
	if err != nil {
		return err
	}
	d.spake2Ctx = ctx
	d.state = DeviceWaitPakeRequest
	return nil
}

// End resets the device to idle, clearing all session and key material.
func (d *Device) End() {
	d.session.End()
	d.spake2Ctx = nil
	d.pending.Clear()
	d.state = DeviceIdle
}

// Loop advances time-driven transitions: issuing fetch Interests and
// detecting expired pending requests. Call it periodically from the host
// harness.
func (d *Device) Loop() {
	switch d.state {
	case DeviceFetchCaProfile:
		d.sendFetchInterest(d.caProfileName, DeviceWaitCaProfile)
	case DeviceFetchAuthenticatorCert:
		d.sendFetchInterest(d.authenticatorCertName, DeviceWaitAuthenticatorCert)
	case DeviceFetchTempCert:
		d.sendFetchInterest(d.tempCertName, DeviceWaitTempCert)
	case DeviceWaitCaProfile, DeviceWaitAuthenticatorCert, DeviceWaitTempCert:
		if d.pending.Expired() {
			if d.log != nil {
				d.log.Warnf("device: pending request expired in state %d", d.state)
			}
			d.state = DeviceFailure
		}
	}
}

func (d *Device) processInterest(interest packet.Interest) bool {
	switch d.state {
	case DeviceWaitPakeRequest:
		return d.handlePakeRequest(interest)
	case DeviceWaitConfirmRequest:
		return d.handleConfirmRequest(interest)
	case DeviceWaitCredentialRequest:
		return d.handleCredentialRequest(interest)
	}
	return false
}

// checkInterestVerb validates an onboarding Interest's shape: the right
// number of components past the onboarding prefix, the expected verb,
// digest integrity, and session-id consistency.
func (d *Device) checkInterestVerb(interest packet.Interest, expectedVerb ndnname.Component) bool {
	name := interest.Name
	prefixLen := d.onboardingPrefix.Len()
	if name.Len() != prefixLen+3 {
		return false
	}
	if !d.onboardingPrefix.Equal(name.Prefix(prefixLen)) {
		return false
	}
	if !name.At(-2).Equal(expectedVerb) {
		return false
	}
	if err := interest.CheckDigest(); err != nil {
		return false
	}
	sessionID := name.At(prefixLen).Value
	return d.session.Assign(sessionID) == nil
}

func (d *Device) saveCurrentInterest(interest packet.Interest) {
	d.lastInterestName = interest.Name.Clone()
	info := d.face.CurrentPacketInfo()
	d.lastInterestEndpoint = info.Endpoint
	d.lastInterestToken = info.PitToken
}

func (d *Device) handlePakeRequest(interest packet.Interest) bool {
	if !d.checkInterestVerb(interest, verbPake) {
		return false
	}
	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	req, err := decodePakeRequest(interest.AppParameters)
	if err != nil {
		return true
	}

	spake2S, err := d.spake2Ctx.GenerateFirstMessage()
	if err != nil {
		return true
	}
	if err := d.spake2Ctx.ProcessFirstMessage(req.Spake2T); err != nil {
		return true
	}
	spake2Fkcb, err := d.spake2Ctx.GenerateSecondMessage()
	if err != nil {
		return true
	}

	res := pakeResponse{Spake2S: spake2S, Spake2Fkcb: spake2Fkcb}
	content, err := res.encode()
	if err != nil {
		return true
	}
	data := &packet.Data{Name: interest.Name, Content: content}
	data.SignNull()
	if err := d.face.Reply(*data, d.face.CurrentPacketInfo().PitToken); err != nil {
		return true
	}
	commit.to(DeviceWaitConfirmRequest)
	return true
}

func (d *Device) handleConfirmRequest(interest packet.Interest) bool {
	if !d.checkInterestVerb(interest, verbConfirm) {
		return false
	}
	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	req, err := decodeConfirmRequest(interest.AppParameters)
	if err != nil {
		return true
	}
	if err := d.spake2Ctx.ProcessSecondMessage(req.Spake2Fkca); err != nil {
		return true
	}
	if err := d.session.ImportKey(d.spake2Ctx.SharedKey()); err != nil {
		return true
	}
	d.spake2Ctx = nil

	plaintext, err := d.session.Decrypt(req.Encrypted.IV, req.Encrypted.Ciphertext, req.Encrypted.Tag)
	if err != nil {
		return true
	}
	inner, err := decodeConfirmRequestInner(plaintext)
	if err != nil {
		return true
	}
	caProfileName, err := ndnname.Decode(inner.CaProfileName)
	if err != nil || !caProfileName.HasTrailingImplicitDigest() {
		return true
	}
	authenticatorCertName, err := ndnname.Decode(inner.AuthenticatorCertName)
	if err != nil || !authenticatorCertName.HasTrailingImplicitDigest() {
		return true
	}
	deviceName, err := ndnname.Decode(inner.DeviceName)
	if err != nil {
		return true
	}
	if !deviceName.Equal(d.deviceName) {
		return true
	}

	d.saveCurrentInterest(interest)
	d.caProfileName = caProfileName
	d.authenticatorCertName = authenticatorCertName
	commit.to(DeviceFetchCaProfile)
	return true
}

func (d *Device) handleCredentialRequest(interest packet.Interest) bool {
	if !d.checkInterestVerb(interest, verbCredential) {
		return false
	}
	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	env, err := decodeEncryptedEnvelope(interest.AppParameters)
	if err != nil {
		return true
	}
	plaintext, err := d.session.Decrypt(env.IV, env.Ciphertext, env.Tag)
	if err != nil {
		return true
	}
	req, err := decodeCredentialRequestInner(plaintext)
	if err != nil {
		return true
	}

	tempCertName, err := ndnname.Decode(req.IssuedCertName)
	if err != nil {
		return true
	}

	d.saveCurrentInterest(interest)
	d.tempCertName = tempCertName
	commit.to(DeviceFetchTempCert)
	return true
}

func (d *Device) sendFetchInterest(name ndnname.Name, nextState int) {
	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	interest := packet.Interest{Name: name}
	token, err := d.face.Send(interest, d.lastInterestEndpoint)
	if err != nil {
		return
	}
	if err := d.pending.Send(token, &name); err != nil {
		return
	}
	commit.to(nextState)
}

func (d *Device) processData(data packet.Data) bool {
	token := d.face.CurrentPacketInfo().PitToken
	if !d.pending.MatchPitToken(token) {
		return false
	}
	switch d.state {
	case DeviceWaitCaProfile:
		return d.handleCaProfile(data)
	case DeviceWaitAuthenticatorCert:
		return d.handleAuthenticatorCert(data)
	case DeviceWaitTempCert:
		return d.handleTempCert(data)
	}
	return false
}

func (d *Device) handleCaProfile(data packet.Data) bool {
	token := d.face.CurrentPacketInfo().PitToken
	if !d.pending.Match(token, data.FullName()) {
		return false
	}
	d.pending.Clear()

	profile, err := credentials.DecodeCaProfileTLV(data.Content)
	if err != nil {
		d.state = DeviceFailure
		return true
	}

	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	now := d.now()
	if !profile.NotBefore.IsZero() && now.Before(profile.NotBefore) {
		return true
	}
	if !profile.NotAfter.IsZero() && now.After(profile.NotAfter) {
		return true
	}
	d.caProfile = profile
	commit.to(DeviceFetchAuthenticatorCert)
	return true
}

func (d *Device) handleAuthenticatorCert(data packet.Data) bool {
	token := d.face.CurrentPacketInfo().PitToken
	if !d.pending.Match(token, data.FullName()) {
		return false
	}
	d.pending.Clear()

	cert, err := credentials.DecodeTLV(data.Content)
	if err != nil {
		d.state = DeviceFailure
		return true
	}

	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	if err := cert.Verify(d.caProfile.PublicKey, d.now()); err != nil {
		return true
	}

	tSubject := computeTempSubjectName(data.Name, d.deviceName)
	tempKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		return true
	}
	d.tempKey = tempKey
	d.tempSubject = tSubject

	tReq := &credentials.Certificate{
		Issuer:    tSubject,
		Subject:   tSubject,
		NotBefore: d.now(),
		NotAfter:  d.now().AddDate(100, 0, 0),
		PublicKey: tempKey.PublicKey(),
	}
	if err := tReq.Sign(tempKey); err != nil {
		return true
	}
	tReqBytes, err := tReq.EncodeTLV()
	if err != nil {
		return true
	}

	inner := confirmResponseInner{TReq: tReqBytes}
	plaintext, err := inner.encode()
	if err != nil {
		return true
	}
	iv, ciphertext, tag, err := d.session.Encrypt(plaintext)
	if err != nil {
		return true
	}
	env := encryptedEnvelope{IV: iv, Tag: tag, Ciphertext: ciphertext}
	content, err := encodeEncryptedEnvelope(env)
	if err != nil {
		return true
	}

	res := &packet.Data{Name: d.lastInterestName, Content: content}
	res.SignNull()
	if err := d.face.Reply(*res, d.lastInterestToken); err != nil {
		return true
	}
	commit.to(DeviceWaitCredentialRequest)
	return true
}

func (d *Device) handleTempCert(data packet.Data) bool {
	token := d.face.CurrentPacketInfo().PitToken
	if !d.pending.Match(token, data.FullName()) {
		return false
	}
	d.pending.Clear()
	d.IssuedCert = append([]byte(nil), data.Content...)

	commit := newStateCommit(&d.state, DeviceFailure)
	defer commit.run()

	res := &packet.Data{Name: d.lastInterestName}
	res.SignNull()
	if err := d.face.Reply(*res, d.lastInterestToken); err != nil {
		return true
	}
	commit.to(DeviceSuccess)
	return true
}
