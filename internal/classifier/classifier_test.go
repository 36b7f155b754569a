package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyShortPDU(t *testing.T) {
	r := Classify([]byte{0x01, 0x01})
	assert.Equal(t, Result{}, r)
}

func TestClassifyStart(t *testing.T) {
	r := Classify([]byte{0x01, TypeStart, 0x00, 0x00})
	assert.Equal(t, TypeStart, r.Type)
	assert.False(t, r.HasEAP)
}

func TestClassifyEAPRequestIdentity(t *testing.T) {
	pdu := []byte{
		0x01, TypeEAPPacket, 0x00, 0x05, // EAPOL header, body length 5
		CodeRequest, 0x07, 0x00, 0x05, EAPTypeIdentity,
	}
	r := Classify(pdu)
	assert.Equal(t, TypeEAPPacket, r.Type)
	assert.True(t, r.HasEAP)
	assert.Equal(t, CodeRequest, r.Code)
	assert.EqualValues(t, 0x07, r.ID)
	assert.EqualValues(t, 5, r.EAPLen)
	assert.Equal(t, EAPTypeIdentity, r.EAPType)
}

func TestClassifyEAPSuccessNoType(t *testing.T) {
	pdu := []byte{
		0x01, TypeEAPPacket, 0x00, 0x04,
		CodeSuccess, 0x07, 0x00, 0x04,
	}
	r := Classify(pdu)
	assert.True(t, r.HasEAP)
	assert.Equal(t, CodeSuccess, r.Code)
	assert.EqualValues(t, 0, r.EAPType)
}

func TestClassifyTruncatedEAPBody(t *testing.T) {
	pdu := []byte{0x01, TypeEAPPacket, 0x00, 0x02, 0x01, 0x02}
	r := Classify(pdu)
	assert.False(t, r.HasEAP)
}

func TestDescribeUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", DescribeEAPOLType(0xff))
	assert.Equal(t, "Unknown", DescribeEAPCode(0xff))
	assert.Equal(t, "Unknown", DescribeEAPType(0xff))
}

func TestDescribeKnown(t *testing.T) {
	assert.Equal(t, "EAPOL-Start", DescribeEAPOLType(TypeStart))
	assert.Equal(t, "Request", DescribeEAPCode(CodeRequest))
	assert.Equal(t, "Identity", DescribeEAPType(EAPTypeIdentity))
}

func TestIsRequestOrResponse(t *testing.T) {
	assert.True(t, IsRequestOrResponse(CodeRequest))
	assert.True(t, IsRequestOrResponse(CodeResponse))
	assert.False(t, IsRequestOrResponse(CodeSuccess))
	assert.False(t, IsRequestOrResponse(CodeFailure))
}
