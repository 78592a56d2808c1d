package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

const redacted = "[REDACTED]"

// Name identifies one credential in the closed set a Bundle can hold.
type Name string

const (
	TestSecret           Name = "test_secret"
	QBOClientID          Name = "qbo_client_id"
	QBOClientSecret      Name = "qbo_client_secret"
	GoogleServiceAccount Name = "google_service_account"
)

// AllNames returns every credential name in display order.
func AllNames() []Name {
	return []Name{TestSecret, QBOClientID, QBOClientSecret, GoogleServiceAccount}
}

// ParseName validates a credential name.
func ParseName(s string) (Name, error) {
	for _, n := range AllNames() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSecret, s)
}

// Secret is a credential value held in a wipeable byte slice. It refuses to print
// itself; use Reveal when the plaintext is actually needed.
type Secret []byte

// NewSecret copies s into a Secret.
func NewSecret(s string) Secret {
	if s == "" {
		return nil
	}
	return Secret(s)
}

// Reveal returns the plaintext as a string. Go strings cannot be wiped, so keep
// the result short-lived.
func (s Secret) Reveal() string { return string(s) }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Format keeps every fmt verb from printing the bytes.
func (s Secret) Format(f fmt.State, _ rune) { io.WriteString(f, redacted) }

// Clone returns an independent copy.
func (s Secret) Clone() Secret {
	if s == nil {
		return nil
	}
	return append(Secret(nil), s...)
}

// Wipe zeroes the backing memory and drops the slice.
func (s *Secret) Wipe() {
	if *s == nil {
		return
	}
	memguard.WipeBytes(*s)
	*s = nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = NewSecret(str)
	return nil
}

// ServiceAccountKey is the Google service-account key record.
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id,omitempty"`
	PrivateKeyID            string `json:"private_key_id,omitempty"`
	PrivateKey              Secret `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id,omitempty"`
	AuthURI                 string `json:"auth_uri,omitempty"`
	TokenURI                string `json:"token_uri,omitempty"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url,omitempty"`
	ClientX509CertURL       string `json:"client_x509_cert_url,omitempty"`
	UniverseDomain          string `json:"universe_domain,omitempty"`
}

// ParseServiceAccountKey decodes a service-account JSON document. Unknown fields
// are rejected so a pasted document of the wrong kind fails here.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := strictUnmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("invalid service account JSON: %w", err)
	}
	if err := key.Validate(); err != nil {
		key.Wipe()
		return nil, err
	}
	return &key, nil
}

// Validate checks the fields needed to mint tokens.
func (k *ServiceAccountKey) Validate() error {
	switch {
	case k.Type != "service_account":
		return errors.New("service account: type must be \"service_account\"")
	case k.ClientEmail == "":
		return errors.New("service account: client_email is required")
	case len(k.PrivateKey) == 0:
		return errors.New("service account: private_key is required")
	}
	return nil
}

// JSON renders the key in Google's credential file format. The caller must wipe
// the result.
func (k *ServiceAccountKey) JSON() ([]byte, error) {
	return json.Marshal(k)
}

func (k *ServiceAccountKey) Clone() *ServiceAccountKey {
	if k == nil {
		return nil
	}
	cp := *k
	cp.PrivateKey = k.PrivateKey.Clone()
	return &cp
}

func (k *ServiceAccountKey) Wipe() {
	if k == nil {
		return
	}
	k.PrivateKey.Wipe()
	k.PrivateKeyID = ""
}

// Kind tags the variant held by a Value.
type Kind int

const (
	KindText Kind = iota + 1
	KindServiceAccount
)

// Value is one credential: either an opaque text secret or a service-account key.
type Value struct {
	kind    Kind
	text    Secret
	account *ServiceAccountKey
}

// TextValue wraps a text secret.
func TextValue(s Secret) Value { return Value{kind: KindText, text: s} }

// ServiceAccountValue wraps a service-account key.
func ServiceAccountValue(k *ServiceAccountKey) Value {
	return Value{kind: KindServiceAccount, account: k}
}

func (v Value) Kind() Kind { return v.kind }

// Text returns the secret for KindText values.
func (v Value) Text() (Secret, bool) {
	return v.text, v.kind == KindText
}

// ServiceAccount returns the key for KindServiceAccount values.
func (v Value) ServiceAccount() (*ServiceAccountKey, bool) {
	return v.account, v.kind == KindServiceAccount
}

func (v Value) String() string { return redacted }

func (v Value) clone() Value {
	return Value{kind: v.kind, text: v.text.Clone(), account: v.account.Clone()}
}

// Wipe zeroes whatever the value holds.
func (v *Value) Wipe() {
	v.text.Wipe()
	v.account.Wipe()
	v.account = nil
}

// Bundle is the plaintext credential record. It only ever exists in memory.
type Bundle struct {
	TestSecret           Secret             `json:"test_secret,omitempty"`
	QBOClientID          Secret             `json:"qbo_client_id,omitempty"`
	QBOClientSecret      Secret             `json:"qbo_client_secret,omitempty"`
	GoogleServiceAccount *ServiceAccountKey `json:"google_service_account,omitempty"`
}

func (b *Bundle) text(name Name) *Secret {
	switch name {
	case TestSecret:
		return &b.TestSecret
	case QBOClientID:
		return &b.QBOClientID
	case QBOClientSecret:
		return &b.QBOClientSecret
	}
	return nil
}

// Value returns an independent copy of the named credential.
func (b *Bundle) Value(name Name) (Value, error) {
	if name == GoogleServiceAccount {
		if b.GoogleServiceAccount == nil {
			return Value{}, ErrSecretNotSet
		}
		return ServiceAccountValue(b.GoogleServiceAccount.Clone()), nil
	}
	s := b.text(name)
	if s == nil {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownSecret, name)
	}
	if len(*s) == 0 {
		return Value{}, ErrSecretNotSet
	}
	return TextValue(s.Clone()), nil
}

// SetText replaces a text credential. An empty value clears it.
func (b *Bundle) SetText(name Name, value string) error {
	s := b.text(name)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSecret, name)
	}
	s.Wipe()
	*s = NewSecret(value)
	return nil
}

// SetServiceAccount replaces the service-account key; nil clears it.
func (b *Bundle) SetServiceAccount(k *ServiceAccountKey) error {
	if k != nil {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	b.GoogleServiceAccount.Wipe()
	b.GoogleServiceAccount = k
	return nil
}

// Names lists the credentials that are set.
func (b *Bundle) Names() []Name {
	var names []Name
	for _, n := range AllNames() {
		if n == GoogleServiceAccount {
			if b.GoogleServiceAccount != nil {
				names = append(names, n)
			}
			continue
		}
		if len(*b.text(n)) > 0 {
			names = append(names, n)
		}
	}
	return names
}

// Clone returns a deep copy.
func (b *Bundle) Clone() *Bundle {
	return &Bundle{
		TestSecret:           b.TestSecret.Clone(),
		QBOClientID:          b.QBOClientID.Clone(),
		QBOClientSecret:      b.QBOClientSecret.Clone(),
		GoogleServiceAccount: b.GoogleServiceAccount.Clone(),
	}
}

// Wipe zeroes every credential.
func (b *Bundle) Wipe() {
	if b == nil {
		return
	}
	b.TestSecret.Wipe()
	b.QBOClientID.Wipe()
	b.QBOClientSecret.Wipe()
	b.GoogleServiceAccount.Wipe()
	b.GoogleServiceAccount = nil
}

// Equal reports whether two bundles hold the same credentials. Not constant time.
func (b *Bundle) Equal(o *Bundle) bool {
	if b == nil || o == nil {
		return b == o
	}
	if !bytes.Equal(b.TestSecret, o.TestSecret) ||
		!bytes.Equal(b.QBOClientID, o.QBOClientID) ||
		!bytes.Equal(b.QBOClientSecret, o.QBOClientSecret) {
		return false
	}
	x, y := b.GoogleServiceAccount, o.GoogleServiceAccount
	if x == nil || y == nil {
		return x == y
	}
	return x.Type == y.Type &&
		x.ProjectID == y.ProjectID &&
		x.PrivateKeyID == y.PrivateKeyID &&
		bytes.Equal(x.PrivateKey, y.PrivateKey) &&
		x.ClientEmail == y.ClientEmail &&
		x.ClientID == y.ClientID &&
		x.AuthURI == y.AuthURI &&
		x.TokenURI == y.TokenURI &&
		x.AuthProviderX509CertURL == y.AuthProviderX509CertURL &&
		x.ClientX509CertURL == y.ClientX509CertURL &&
		x.UniverseDomain == y.UniverseDomain
}

func (b *Bundle) String() string { return redacted }

func encodeBundle(b *Bundle) ([]byte, error) {
	return json.Marshal(b)
}

func decodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := strictUnmarshal(data, &b); err != nil {
		b.Wipe()
		return nil, err
	}
	if b.GoogleServiceAccount != nil {
		if err := b.GoogleServiceAccount.Validate(); err != nil {
			b.Wipe()
			return nil, err
		}
	}
	return &b, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
