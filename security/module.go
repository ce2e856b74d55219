package security

import (
	"fmt"
	"strings"
)

// Module is a software Provider on top of crypto/des. It holds no state and
// is safe for concurrent use.
type Module struct{}

var _ Provider = (*Module)(nil)

func NewModule() *Module {
	return &Module{}
}

func (m *Module) ImportKey(usage Usage, clear []byte) (*Key, error) {
	key, err := newKey(usage, clear)
	if err != nil {
		return nil, err
	}
	switch usage {
	case UsageBDK, UsageIMKAC, UsageCVK:
		if key.Len() != 16 {
			return nil, fmt.Errorf("%w: %s requires a double length key", ErrInvalidKeyLength, usage)
		}
	}
	return key, nil
}

func (m *Module) EncryptData(key *Key, data []byte) ([]byte, error) {
	if err := requireUsage(key, UsageZPK, UsageKEK, UsageTAK); err != nil {
		return nil, err
	}
	return encryptECB(key.material, data)
}

func (m *Module) DeriveKey(bdk *Key, ksn KSN) (*Key, error) {
	if err := requireUsage(bdk, UsageBDK); err != nil {
		return nil, err
	}
	raw, err := ksn.Bytes()
	if err != nil {
		return nil, err
	}
	material, err := derivePINKey(bdk.material, raw)
	if err != nil {
		return nil, err
	}
	return &Key{usage: UsageDerivedPIN, material: material}, nil
}

func (m *Module) EncryptDerived(key *Key, data []byte) ([]byte, error) {
	if err := requireUsage(key, UsageDerivedPIN); err != nil {
		return nil, err
	}
	return encryptECB(key.material, data)
}

func (m *Module) GenerateMAC(key *Key, algorithm string, data []byte) ([]byte, error) {
	if err := requireUsage(key, UsageTAK); err != nil {
		return nil, err
	}
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case MACDESede:
		return cbcMAC(key.material, zeroPad(data))
	case MACISO9797Alg3:
		return retailMAC(key.material, zeroPad(data))
	case MACISO9797Alg3ISO7816:
		return retailMAC(key.material, iso7816Pad(data))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
}

func (m *Module) CalculateARQC(req ARQCRequest) ([]byte, error) {
	if err := requireUsage(req.IMK, UsageIMKAC); err != nil {
		return nil, err
	}
	mk, err := masterKey(req.IMK.material, req.MKD, req.PAN, req.PSN)
	if err != nil {
		return nil, err
	}
	sk, err := sessionKey(mk, req.SKD, req.ATC, req.UN)
	if err != nil {
		return nil, err
	}
	return retailMAC(sk, zeroPad(req.Data))
}

func (m *Module) KeyCheckValue(key *Key) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", ErrKeyUsage)
	}
	out, err := encryptECB(key.material, make([]byte, 8))
	if err != nil {
		return nil, err
	}
	return out[:3], nil
}

// EncryptKey encrypts a clear key under a key encryption key, block by block.
func (m *Module) EncryptKey(clear, kek *Key) ([]byte, error) {
	if clear == nil {
		return nil, fmt.Errorf("%w: nil key", ErrKeyUsage)
	}
	if err := requireUsage(kek, UsageKEK); err != nil {
		return nil, err
	}
	return encryptECB(kek.material, clear.material)
}

func requireUsage(key *Key, allowed ...Usage) error {
	if key == nil {
		return fmt.Errorf("%w: nil key", ErrKeyUsage)
	}
	for _, u := range allowed {
		if key.usage == u {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrKeyUsage, key.usage)
}
