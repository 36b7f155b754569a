package config

import (
	"fmt"

	"github.com/kangtastic/peapod/internal/classifier"
)

// eapolTypeTokens maps the nine EAPOL Type grammar tokens to their
// classifier.Type values, used by both "filter" lists and "exec".
var eapolTypeTokens = map[string]uint8{
	"eap-packet":              classifier.TypeEAPPacket,
	"start":                   classifier.TypeStart,
	"logoff":                  classifier.TypeLogoff,
	"key":                     classifier.TypeKey,
	"encapsulated-asf-alert":  classifier.TypeEncapASFAlert,
	"mka":                     classifier.TypeMKA,
	"announcement-generic":    classifier.TypeAnnouncementGeneric,
	"announcement-specific":   classifier.TypeAnnouncementSpecif,
	"announcement-req":        classifier.TypeAnnouncementReq,
}

// eapCodeTokens maps the four EAP-Packet Code grammar tokens to their
// classifier.Code values.
var eapCodeTokens = map[string]uint8{
	"request":  classifier.CodeRequest,
	"response": classifier.CodeResponse,
	"success":  classifier.CodeSuccess,
	"failure":  classifier.CodeFailure,
}

const allToken = "all"

// classification is what a single filter-list or exec token resolves
// to: either a specific EAPOL Type, or a specific EAP Code (mutually
// exclusive), or (filter lists only) "all types".
type classification struct {
	isAll    bool
	isType   bool
	typeVal  uint8
	isCode   bool
	codeVal  uint8
}

func resolveToken(tok string) (classification, error) {
	if tok == allToken {
		return classification{isAll: true}, nil
	}
	if v, ok := eapolTypeTokens[tok]; ok {
		return classification{isType: true, typeVal: v}, nil
	}
	if v, ok := eapCodeTokens[tok]; ok {
		return classification{isCode: true, codeVal: v}, nil
	}
	return classification{}, fmt.Errorf("unrecognized classification token %q", tok)
}
