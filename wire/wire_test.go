package wire

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestRequestPacketFrame(t *testing.T) {
	p := RequestPacket{Code: CmdGotoPose, Body: "100 200 300 ", Timeout: time.Second, ExpectResponse: true}
	test.That(t, string(p.Frame()), test.ShouldEqual, "5 100 200 300 #")
}

func TestParseResponseSuccess(t *testing.T) {
	res, err := ParseResponse([]byte("5 1 100.5 200.25#"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.MirrorCode, test.ShouldEqual, 5)
	test.That(t, res.ResultCode, test.ShouldEqual, ResultSuccess)
	test.That(t, res.Message, test.ShouldEqual, "100.5 200.25#")
}

func TestParseResponseFailure(t *testing.T) {
	res, err := ParseResponse([]byte("5 0 collision detected#"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.ResultCode, test.ShouldEqual, ResultFailure)
	test.That(t, res.Message, test.ShouldEqual, "collision detected#")
}

func TestParseResponseEmpty(t *testing.T) {
	_, err := ParseResponse([]byte("   "))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := ParseResponse([]byte("only-one-token"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseResponseNonIntegerCode(t *testing.T) {
	_, err := ParseResponse([]byte("abc 1 msg#"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFormatFieldTrimsTrailingZerosAndDot(t *testing.T) {
	test.That(t, FormatField("%.5f", 1.0), test.ShouldEqual, "1")
	test.That(t, FormatField("%.5f", 1.25000), test.ShouldEqual, "1.25")
	test.That(t, FormatField("%.2f", 0.0), test.ShouldEqual, "0")
	test.That(t, FormatField("%.2f", -0.0), test.ShouldEqual, "0")
}

func TestFormatFieldsJoinsWithTrailingSpace(t *testing.T) {
	test.That(t, FormatFields("%.2f", 1.0, 2.5, 3.0), test.ShouldEqual, "1 2.5 3 ")
}

func TestFormatIntsNoTrimming(t *testing.T) {
	test.That(t, FormatInts(1, -2, 0), test.ShouldEqual, "1 -2 0 ")
}
