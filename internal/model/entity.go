package model

import "time"

// Entity is the immutable company record a proposal is written for.
type Entity struct {
	Name         string      `json:"name" yaml:"name"`
	Address      string      `json:"address" yaml:"address"`
	NAICSCodes   []NAICSCode `json:"naics_codes" yaml:"naics_codes"`
	UEI          string      `json:"uei" yaml:"uei"`
	Founded      time.Time   `json:"founded" yaml:"founded"`
	ContactEmail string      `json:"contact_email,omitempty" yaml:"contact_email,omitempty"`
	ContactPhone string      `json:"contact_phone,omitempty" yaml:"contact_phone,omitempty"`
}

// NAICSCode pairs a classification code with its official title.
type NAICSCode struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// PrimaryNAICS returns the entity's first registered NAICS code, or the zero
// value when the entity has none.
func (e Entity) PrimaryNAICS() NAICSCode {
	if len(e.NAICSCodes) == 0 {
		return NAICSCode{}
	}
	return e.NAICSCodes[0]
}

// HasNAICS reports whether the entity is registered under the given code.
func (e Entity) HasNAICS(code string) bool {
	for _, c := range e.NAICSCodes {
		if c.Code == code {
			return true
		}
	}
	return false
}
