package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ProfileVersion is the schema version written by EncodeProfile.
const ProfileVersion = 1

var ErrUnknownProfileVersion = errors.New("unknown profile version")

// Profile is the descriptive data the platform reports for an authorizer.
// Type ids are nil when the platform omitted them.
type Profile struct {
	Version         int             `json:"version"`
	NickName        string          `json:"nick_name,omitempty"`
	HeadImage       string          `json:"head_img,omitempty"`
	ServiceTypeID   *int            `json:"service_type_id,omitempty"`
	VerifyTypeID    *int            `json:"verify_type_id,omitempty"`
	UserName        string          `json:"user_name,omitempty"`
	PrincipalName   string          `json:"principal_name,omitempty"`
	Alias           string          `json:"alias,omitempty"`
	QRCodeURL       string          `json:"qrcode_url,omitempty"`
	Signature       string          `json:"signature,omitempty"`
	BusinessInfo    map[string]int  `json:"business_info,omitempty"`
	MiniProgramInfo json.RawMessage `json:"mini_program_info,omitempty"`
}

// IsZero reports whether the profile was never synced.
func (p Profile) IsZero() bool {
	return p.Version == 0 && p.NickName == "" && p.HeadImage == "" &&
		p.ServiceTypeID == nil && p.VerifyTypeID == nil &&
		p.UserName == "" && p.PrincipalName == "" && p.Alias == "" &&
		p.QRCodeURL == "" && p.Signature == "" &&
		len(p.BusinessInfo) == 0 && len(p.MiniProgramInfo) == 0
}

func (p Profile) Equal(o Profile) bool {
	return p.Version == o.Version &&
		p.NickName == o.NickName &&
		p.HeadImage == o.HeadImage &&
		intPtrEqual(p.ServiceTypeID, o.ServiceTypeID) &&
		intPtrEqual(p.VerifyTypeID, o.VerifyTypeID) &&
		p.UserName == o.UserName &&
		p.PrincipalName == o.PrincipalName &&
		p.Alias == o.Alias &&
		p.QRCodeURL == o.QRCodeURL &&
		p.Signature == o.Signature &&
		maps.Equal(p.BusinessInfo, o.BusinessInfo) &&
		bytes.Equal(p.MiniProgramInfo, o.MiniProgramInfo)
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	c := p
	if p.ServiceTypeID != nil {
		v := *p.ServiceTypeID
		c.ServiceTypeID = &v
	}
	if p.VerifyTypeID != nil {
		v := *p.VerifyTypeID
		c.VerifyTypeID = &v
	}
	c.BusinessInfo = maps.Clone(p.BusinessInfo)
	if p.MiniProgramInfo != nil {
		c.MiniProgramInfo = bytes.Clone(p.MiniProgramInfo)
	}
	return c
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EncodeProfile serializes a profile for storage, stamping the current version
// on non-empty profiles.
func EncodeProfile(p Profile) ([]byte, error) {
	if p.IsZero() {
		return []byte("{}"), nil
	}
	p.Version = ProfileVersion
	return json.Marshal(p)
}

// DecodeProfile parses a stored profile. An empty object is the zero profile.
func DecodeProfile(data []byte) (Profile, error) {
	var p Profile
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	p.MiniProgramInfo = CanonicalJSON(p.MiniProgramInfo)
	if p.Version == 0 && p.IsZero() {
		return p, nil
	}
	if p.Version != ProfileVersion {
		return Profile{}, fmt.Errorf("%w: %d", ErrUnknownProfileVersion, p.Version)
	}
	return p, nil
}

// CanonicalJSON re-encodes raw with sorted keys and no insignificant
// whitespace, so values read back from JSONB compare equal to fresh ones.
// Invalid input and JSON null yield nil.
func CanonicalJSON(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return out
}
