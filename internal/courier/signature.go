package courier

import (
	"bytes"
	"encoding/json"
)

// Signature is the proof of handover captured by the courier.
type Signature struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// MaybeSignature is a Signature that may be absent. The zero value is absent.
type MaybeSignature struct {
	sig     Signature
	present bool
}

// Some wraps a present signature.
func Some(sig Signature) MaybeSignature {
	return MaybeSignature{sig: sig, present: true}
}

// None returns an absent signature.
func None() MaybeSignature {
	return MaybeSignature{}
}

// Get returns the signature and whether it is present.
func (m MaybeSignature) Get() (Signature, bool) {
	return m.sig, m.present
}

// Present reports whether a signature was captured.
func (m MaybeSignature) Present() bool {
	return m.present
}

// OrEmpty returns the signature, or an empty one when absent.
func (m MaybeSignature) OrEmpty() Signature {
	if !m.present {
		return Signature{}
	}
	return m.sig
}

// UnmarshalJSON treats null, a missing object and an object with neither name
// nor url as absent.
func (m *MaybeSignature) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = None()
		return nil
	}
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return err
	}
	if sig.Name == "" && sig.URL == "" {
		*m = None()
		return nil
	}
	*m = Some(sig)
	return nil
}

func (m MaybeSignature) MarshalJSON() ([]byte, error) {
	if !m.present {
		return []byte("null"), nil
	}
	return json.Marshal(m.sig)
}
