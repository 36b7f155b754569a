// Package classifier decodes the EAPOL and EAP headers of a captured
// frame and renders the short textual descriptions used in log lines.
package classifier

import "encoding/binary"

// EAPOL frame Types (IEEE Std 802.1X-2010 §11.3.2).
const (
	TypeEAPPacket           uint8 = 0
	TypeStart               uint8 = 1
	TypeLogoff              uint8 = 2
	TypeKey                 uint8 = 3
	TypeEncapASFAlert       uint8 = 4
	TypeMKA                 uint8 = 5
	TypeAnnouncementGeneric uint8 = 6
	TypeAnnouncementSpecif  uint8 = 7
	TypeAnnouncementReq     uint8 = 8
)

// EAP-Packet Codes (RFC 3748 §2.2).
const (
	CodeRequest uint8 = 1
	CodeResponse uint8 = 2
	CodeSuccess uint8 = 3
	CodeFailure uint8 = 4
)

// A subset of the EAP Type values a Request/Response packet may carry
// (RFC 3748 §5 and various extension RFCs), used only for log output.
const (
	EAPTypeIdentity     uint8 = 1
	EAPTypeNotification uint8 = 2
	EAPTypeNak          uint8 = 3
	EAPTypeMD5Challenge uint8 = 4
	EAPTypeOTP          uint8 = 5
	EAPTypeGTC          uint8 = 6
	EAPTypeTLS          uint8 = 13
	EAPTypeSIM          uint8 = 18
	EAPTypeTTLS         uint8 = 21
	EAPTypeAKA          uint8 = 23
	EAPTypePEAP         uint8 = 25
	EAPTypeMSCHAPv2     uint8 = 26
	EAPTypeMSCHAPv2Old  uint8 = 29
	EAPTypeFAST         uint8 = 43
	EAPTypeIKEv2        uint8 = 49
	EAPTypeExpanded     uint8 = 254
	EAPTypeExperimental uint8 = 255
)

var eapolTypeNames = map[uint8]string{
	TypeEAPPacket:           "EAP-Packet",
	TypeStart:               "EAPOL-Start",
	TypeLogoff:              "EAPOL-Logoff",
	TypeKey:                 "EAPOL-Key",
	TypeEncapASFAlert:       "EAPOL-Encapsulated-ASF-Alert",
	TypeMKA:                 "EAPOL-MKA",
	TypeAnnouncementGeneric: "EAPOL-Announcement (Generic)",
	TypeAnnouncementSpecif:  "EAPOL-Announcement (Specific)",
	TypeAnnouncementReq:     "EAPOL-Announcement-Req",
}

var eapCodeNames = map[uint8]string{
	CodeRequest:  "Request",
	CodeResponse: "Response",
	CodeSuccess:  "Success",
	CodeFailure:  "Failure",
}

var eapTypeNames = map[uint8]string{
	EAPTypeIdentity:     "Identity",
	EAPTypeNotification: "Notification",
	EAPTypeNak:          "Nak (Response only)",
	EAPTypeMD5Challenge: "MD5-Challenge",
	EAPTypeOTP:          "One Time Password (OTP)",
	EAPTypeGTC:          "Generic Token Card (GTC)",
	EAPTypeTLS:          "EAP TLS",
	EAPTypeSIM:          "EAP-SIM",
	EAPTypeTTLS:         "EAP-TTLS",
	EAPTypeAKA:          "EAP-AKA",
	EAPTypePEAP:         "PEAP",
	EAPTypeMSCHAPv2:     "EAP MS-CHAP-V2",
	EAPTypeMSCHAPv2Old:  "EAP MS-CHAP V2",
	EAPTypeFAST:         "EAP-FAST",
	EAPTypeIKEv2:        "EAP-IKEv2",
	EAPTypeExpanded:     "Expanded Types",
	EAPTypeExperimental: "Experimental use",
}

// DescribeEAPOLType renders the text description of an EAPOL frame Type,
// or "Unknown" if val has no known description.
func DescribeEAPOLType(val uint8) string { return describe(eapolTypeNames, val) }

// DescribeEAPCode renders the text description of an EAP-Packet Code.
func DescribeEAPCode(val uint8) string { return describe(eapCodeNames, val) }

// DescribeEAPType renders the text description of an EAP Request/Response Type.
func DescribeEAPType(val uint8) string { return describe(eapTypeNames, val) }

func describe(m map[uint8]string, val uint8) string {
	if s, ok := m[val]; ok {
		return s
	}
	return "Unknown"
}

// Result is the outcome of classifying an EAPOL PDU.
type Result struct {
	ProtocolVersion uint8
	Type            uint8
	BodyLength      uint16

	// HasEAP is set when Type == TypeEAPPacket and the body was long
	// enough to contain an EAP header.
	HasEAP  bool
	Code    uint8
	ID      uint8
	EAPLen  uint16
	EAPType uint8
}

// Classify parses an EAPOL PDU (the bytes starting at the EAPOL protocol
// version field, i.e. immediately after the EtherType) and produces a
// Result. It never returns an error: a PDU too short to contain a full
// EAPOL header is classified with BodyLength 0 and no further fields
// set, matching the "unknown types are still proxied" rule in spec.md §4.3.
func Classify(pdu []byte) Result {
	var r Result
	if len(pdu) < 4 {
		return r
	}
	r.ProtocolVersion = pdu[0]
	r.Type = pdu[1]
	r.BodyLength = binary.BigEndian.Uint16(pdu[2:4])

	if r.Type != TypeEAPPacket {
		return r
	}

	body := pdu[4:]
	if len(body) < 4 {
		return r
	}
	r.HasEAP = true
	r.Code = body[0]
	r.ID = body[1]
	r.EAPLen = binary.BigEndian.Uint16(body[2:4])
	if len(body) >= 5 {
		r.EAPType = body[4]
	}
	return r
}

// IsRequestOrResponse reports whether code is EAP-Packet Code Request or
// Response, the only two Codes that carry a meaningful Type field.
func IsRequestOrResponse(code uint8) bool {
	return code == CodeRequest || code == CodeResponse
}
