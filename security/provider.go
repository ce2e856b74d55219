package security

//go:generate mockgen -source=provider.go -destination=../internal/mock/security_mock.go -package=mock

import "github.com/mkadit/isoperf/emv"

// Provider is the set of cryptographic primitives the message pipeline relies
// on. Key material never leaves a provider once imported; callers work with
// opaque *Key handles.
type Provider interface {
	// ImportKey turns clear key bytes into a handle bound to usage.
	ImportKey(usage Usage, clear []byte) (*Key, error)
	// EncryptData encrypts data in ECB mode. len(data) must be a multiple of 8.
	EncryptData(key *Key, data []byte) ([]byte, error)
	// DeriveKey derives the DUKPT PIN encryption key for ksn from a base
	// derivation key.
	DeriveKey(bdk *Key, ksn KSN) (*Key, error)
	// EncryptDerived encrypts a PIN block under a key returned by DeriveKey.
	EncryptDerived(key *Key, data []byte) ([]byte, error)
	// GenerateMAC computes a MAC with the named algorithm.
	GenerateMAC(key *Key, algorithm string, data []byte) ([]byte, error)
	// CalculateARQC derives the card session key and computes the cryptogram.
	CalculateARQC(req ARQCRequest) ([]byte, error)
	// KeyCheckValue returns the first three bytes of the key encrypting zeros.
	KeyCheckValue(key *Key) ([]byte, error)
}

// ARQCRequest carries the inputs of an authorization request cryptogram.
type ARQCRequest struct {
	MKD  emv.MKDMethod
	SKD  emv.SKDMethod
	IMK  *Key
	PAN  string
	PSN  string
	ATC  []byte
	UN   []byte
	Data []byte
}
