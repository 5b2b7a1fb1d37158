package pake

import (
	"crypto/rand"
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

// Authenticator states, mirroring original_source's
// ndnob::pake::Authenticator::State.
const (
	AuthenticatorIdle = iota
	AuthenticatorSendPakeRequest
	AuthenticatorWaitPakeResponse
	AuthenticatorWaitConfirmResponse
	AuthenticatorSendCredentialRequest
	AuthenticatorWaitCredentialResponse
	AuthenticatorSuccess
	AuthenticatorFailure
)

// AuthenticatorOptions configures an Authenticator.
type AuthenticatorOptions struct {
	Face             face.Face
	OnboardingPrefix ndnname.Name
	DeviceName       ndnname.Name
	DeviceEndpoint   string

	CaProfile     credentials.CaProfile
	CaProfileName ndnname.Name

	Cert       credentials.Certificate
	CertName   ndnname.Name
	PrivateKey *crypto.ECKeyPair

	// Nc is a freshness nonce included in the confirm request. If nil, a
	// random 16-byte value is generated.
	Nc []byte

	// TempCertValidity bounds the temp certificate the Authenticator
	// issues to the Device's temp key. Defaults to 24 hours.
	TempCertValidity time.Duration

	LoggerFactory logging.LoggerFactory
}

// Authenticator runs the onboarding protocol's initiator side: it drives
// the PAKE exchange, proves its own certificate and the CA profile to
// the Device over the resulting encrypted session, issues a short-lived
// credential to the Device's temporary key, and serves that credential
// for fetch.
type Authenticator struct {
	face             face.Face
	onboardingPrefix ndnname.Name
	deviceName       ndnname.Name
	deviceEndpoint   string
	log              logging.LeveledLogger

	state int

	spake2Ctx *spake2.Context
	session   session.Session
	pending   pending.Tracker

	caProfileData packet.Data
	certData      packet.Data
	privateKey    *crypto.ECKeyPair
	nc            []byte
	tempValidity  time.Duration

	issuedData *packet.Data

	Now func() time.Time
}

// NewAuthenticator constructs an Authenticator and registers its packet
// handlers on the given Face.
func NewAuthenticator(opts AuthenticatorOptions) (*Authenticator, error) {
	nc := opts.Nc
	if nc == nil {
		nc = make([]byte, 16)
		if _, err := rand.Read(nc); err != nil {
			return nil, err
		}
	}
	tempValidity := opts.TempCertValidity
	if tempValidity == 0 {
		tempValidity = 24 * time.Hour
	}

	caProfileBytes, err := opts.CaProfile.EncodeTLV()
	if err != nil {
		return nil, err
	}
	caProfileData := packet.Data{Name: opts.CaProfileName, Content: caProfileBytes, SignerType: packet.SignerECDSA}

	certBytes, err := opts.Cert.EncodeTLV()
	if err != nil {
		return nil, err
	}
	certData := packet.Data{Name: opts.CertName, Content: certBytes, SignerType: packet.SignerECDSA}

	a := &Authenticator{
		face:             opts.Face,
		onboardingPrefix: opts.OnboardingPrefix,
		deviceName:       opts.DeviceName,
		deviceEndpoint:   opts.DeviceEndpoint,
		state:            AuthenticatorIdle,
		caProfileData:    caProfileData,
		certData:         certData,
		privateKey:       opts.PrivateKey,
		nc:               nc,
		tempValidity:     tempValidity,
	}
	if opts.LoggerFactory != nil {
		a.log = opts.LoggerFactory.NewLogger("pake.authenticator")
	}
	a.face.RegisterHandler(a.processInterest, a.processData)
	return a, nil
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// State returns the authenticator's current state.
func (a *Authenticator) State() int { return a.state }

// Begin resets the authenticator and starts the PAKE exchange with the
// given shared onboarding password.
func (a *Authenticator) Begin(password []byte) error {
	a.End()
	if err := a.session.Begin(); err != nil {
		return err
	}
	w0 := spake2.DeriveW0(password, passwordSalt, passwordIterations)
	ctx, err := spake2.NewContext(spake2.RoleInitiator, w0)
	if err != nil {
		return err
	}
	a.spake2Ctx = ctx
	a.state = AuthenticatorSendPakeRequest
	return nil
}

// End resets the authenticator to idle, clearing all session and key
// material.
func (a *Authenticator) End() {
	a.session.End()
	a.spake2Ctx = nil
	a.pending.Clear()
	a.state = AuthenticatorIdle
}

// Loop advances time-driven transitions: issuing the next request in the
// sequence and detecting expired pending requests.
func (a *Authenticator) Loop() {
	switch a.state {
	case AuthenticatorSendPakeRequest:
		a.sendPakeRequest()
	case AuthenticatorSendCredentialRequest:
		a.sendCredentialRequest()
	case AuthenticatorWaitPakeResponse, AuthenticatorWaitConfirmResponse, AuthenticatorWaitCredentialResponse:
		if a.pending.Expired() {
			if a.log != nil {
				a.log.Warnf("authenticator: pending request expired in state %d", a.state)
			}
			a.state = AuthenticatorFailure
		}
	}
}

func (a *Authenticator) sendPakeRequest() {
	commit := newStateCommit(&a.state, AuthenticatorFailure)
	defer commit.run()

	spake2T, err := a.spake2Ctx.GenerateFirstMessage()
	if err != nil {
		return
	}
	req := pakeRequest{Spake2T: spake2T}
	params, err := req.encode()
	if err != nil {
		return
	}
	name := requestName(a.onboardingPrefix, a.session.SessionIDComponent(), verbPake)
	interest := packet.NewInterest(name, params)
	token, err := a.face.Send(interest, a.deviceEndpoint)
	if err != nil {
		return
	}
	if err := a.pending.Send(token, nil); err != nil {
		return
	}
	commit.to(AuthenticatorWaitPakeResponse)
}

func (a *Authenticator) processData(data packet.Data) bool {
	token := a.face.CurrentPacketInfo().PitToken
	if !a.pending.MatchPitToken(token) {
		return false
	}
	switch a.state {
	case AuthenticatorWaitPakeResponse:
		return a.handlePakeResponse(data)
	case AuthenticatorWaitConfirmResponse:
		return a.handleConfirmResponse(data)
	case AuthenticatorWaitCredentialResponse:
		a.pending.Clear()
		a.state = AuthenticatorSuccess
		return true
	}
	return false
}

func (a *Authenticator) handlePakeResponse(data packet.Data) bool {
	res, err := decodePakeResponse(data.Content)
	if err != nil {
		return false
	}
	a.pending.Clear()

	commit := newStateCommit(&a.state, AuthenticatorFailure)
	defer commit.run()

	if err := a.spake2Ctx.ProcessFirstMessage(res.Spake2S); err != nil {
		return true
	}
	spake2Fkca, err := a.spake2Ctx.GenerateSecondMessage()
	if err != nil {
		return true
	}
	if err := a.spake2Ctx.ProcessSecondMessage(res.Spake2Fkcb); err != nil {
		return true
	}
	if err := a.session.ImportKey(a.spake2Ctx.SharedKey()); err != nil {
		return true
	}
	a.spake2Ctx = nil

	inner := confirmRequestInner{
		Nc:                    a.nc,
		CaProfileName:         a.caProfileData.FullName().Encode(),
		AuthenticatorCertName: a.certData.FullName().Encode(),
		DeviceName:            a.deviceName.Encode(),
		Timestamp:             uint64(a.now().UnixMicro()),
	}
	plaintext, err := inner.encode()
	if err != nil {
		return true
	}
	iv, ciphertext, tag, err := a.session.Encrypt(plaintext)
	if err != nil {
		return true
	}
	req := confirmRequest{
		Spake2Fkca: spake2Fkca,
		Encrypted:  encryptedEnvelope{IV: iv, Tag: tag, Ciphertext: ciphertext},
	}
	params, err := req.encode()
	if err != nil {
		return true
	}
	name := requestName(a.onboardingPrefix, a.session.SessionIDComponent(), verbConfirm)
	interest := packet.NewInterest(name, params)
	token, err := a.face.Send(interest, a.deviceEndpoint)
	if err != nil {
		return true
	}
	if err := a.pending.Send(token, nil); err != nil {
		return true
	}
	commit.to(AuthenticatorWaitConfirmResponse)
	return true
}

func (a *Authenticator) handleConfirmResponse(data packet.Data) bool {
	env, err := decodeEncryptedEnvelope(data.Content)
	if err != nil {
		return false
	}
	plaintext, err := a.session.Decrypt(env.IV, env.Ciphertext, env.Tag)
	if err != nil {
		return false
	}
	inner, err := decodeConfirmResponseInner(plaintext)
	if err != nil {
		return false
	}
	tReq, err := credentials.DecodeTLV(inner.TReq)
	if err != nil {
		return false
	}
	a.pending.Clear()

	commit := newStateCommit(&a.state, AuthenticatorFailure)
	defer commit.run()

	wantSubject := computeTempSubjectName(a.certData.Name, a.deviceName)
	if !tReq.Subject.Equal(wantSubject) {
		return true
	}
	// tReq is self-signed by the device's temp key; verify it really
	// controls that key before issuing a credential to it.
	if err := tReq.Verify(tReq.PublicKey, time.Time{}); err != nil {
		return true
	}

	now := a.now()
	issued := &credentials.Certificate{
		Issuer:    a.certData.Name,
		Subject:   wantSubject,
		NotBefore: now,
		NotAfter:  now.Add(a.tempValidity),
		PublicKey: tReq.PublicKey,
	}
	if err := issued.Sign(a.privateKey); err != nil {
		return true
	}
	issuedBytes, err := issued.EncodeTLV()
	if err != nil {
		return true
	}
	issuedData := &packet.Data{Name: wantSubject, Content: issuedBytes, SignerType: packet.SignerECDSA}
	a.issuedData = issuedData
	commit.to(AuthenticatorSendCredentialRequest)
	return true
}

func (a *Authenticator) sendCredentialRequest() {
	commit := newStateCommit(&a.state, AuthenticatorFailure)
	defer commit.run()

	inner := credentialRequestInner{IssuedCertName: a.issuedData.FullName().Encode()}
	plaintext, err := inner.encode()
	if err != nil {
		return
	}
	iv, ciphertext, tag, err := a.session.Encrypt(plaintext)
	if err != nil {
		return
	}
	env := encryptedEnvelope{IV: iv, Tag: tag, Ciphertext: ciphertext}
	params, err := encodeEncryptedEnvelope(env)
	if err != nil {
		return
	}
	name := requestName(a.onboardingPrefix, a.session.SessionIDComponent(), verbCredential)
	interest := packet.NewInterest(name, params)
	token, err := a.face.Send(interest, a.deviceEndpoint)
	if err != nil {
		return
	}
	if err := a.pending.Send(token, nil); err != nil {
		return
	}
	commit.to(AuthenticatorWaitCredentialResponse)
}

func (a *Authenticator) processInterest(interest packet.Interest) bool {
	token := a.face.CurrentPacketInfo().PitToken
	if interest.Name.Equal(a.caProfileData.FullName()) {
		return a.face.Reply(a.caProfileData, token) == nil
	}
	if interest.Name.Equal(a.certData.FullName()) {
		return a.face.Reply(a.certData, token) == nil
	}
	if a.issuedData != nil && interest.Name.Equal(a.issuedData.FullName()) {
		return a.face.Reply(*a.issuedData, token) == nil
	}
	return false
}
