// Package wire implements the ASCII request/response framing used to talk
// to the RAPID motion server running on the YuMi controller.
//
// One request on the wire is `<opcode_int> <body>#` where body is a
// space-separated sequence of numeric fields, each trimmed of trailing
// zeros and a trailing dot to match the RAPID parser. The response is
// `<mirror_code> <result_code> <message...>` with no framing delimiter.
package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CommandCode is the wire opcode for one RAPID server command.
type CommandCode int

// Opcodes, matching the RAPID server's command table.
const (
	CmdPing CommandCode = 0
	CmdGotoPoseLinear CommandCode = 1
	CmdGotoJoints CommandCode = 2
	CmdGetPose CommandCode = 3
	CmdGetJoints CommandCode = 4
	CmdGotoPose CommandCode = 5
	CmdSetTool CommandCode = 6
	CmdSetSpeed CommandCode = 8
	CmdSetZone CommandCode = 9
	CmdSetConf CommandCode = 10
	CmdGotoPoseSync CommandCode = 11
	CmdGotoJointsSync CommandCode = 12
	CmdGotoPoseDelta CommandCode = 13

	CmdCloseGripper CommandCode = 20
	CmdOpenGripper CommandCode = 21
	CmdCalibrateGripper CommandCode = 22
	CmdSetGripperMaxSpeed CommandCode = 23
	CmdSetGripperForce CommandCode = 24
	CmdMoveGripper CommandCode = 25
	CmdGetGripperWidth CommandCode = 26

	CmdBufferAdd CommandCode = 30
	CmdBufferClear CommandCode = 31
	CmdBufferSize CommandCode = 32
	CmdBufferMove CommandCode = 33
	CmdSetCircPoint CommandCode = 35
	CmdMoveByCircPoint CommandCode = 36

	CmdIsPoseReachable CommandCode = 40
	CmdIsJointsReachable CommandCode = 41
	CmdIK CommandCode = 42
	CmdFK CommandCode = 43

	CmdSetLeadThrough CommandCode = 60
	CmdIsLeadThrough CommandCode = 61

	CmdIsGripperCalibrated CommandCode = 70

	CmdCloseConnection CommandCode = 99

	CmdResetHome CommandCode = 100
)

// ResultCode is the second token of a RawResponse.
type ResultCode int

// Result codes.
const (
	ResultFailure ResultCode = 0
	ResultSuccess ResultCode = 1
)

// RequestPacket is one framed request.
type RequestPacket struct {
	Code           CommandCode
	Body           string
	Timeout        time.Duration
	ExpectResponse bool
}

// Frame renders the request as the ASCII wire frame `<opcode> <body>#`.
func (r RequestPacket) Frame() []byte {
	return []byte(fmt.Sprintf("%d %s#", r.Code, r.Body))
}

// RawResponse is the parsed response frame.
type RawResponse struct {
	MirrorCode int
	ResultCode ResultCode
	Message    string
}

// ParseResponse parses the raw ASCII bytes received from an arm socket.
// Any deviation from `<mirror> <result> <message...>` — empty input, fewer
// than two tokens, or non-integer codes — is a malformed-response error.
func ParseResponse(raw []byte) (RawResponse, error) {
	s := string(raw)
	if strings.TrimSpace(s) == "" {
		return RawResponse{}, errors.New("empty response")
	}
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return RawResponse{}, errors.Errorf("malformed response: %q", s)
	}
	mirror, err := strconv.Atoi(tokens[0])
	if err != nil {
		return RawResponse{}, errors.Wrapf(err, "malformed response mirror code: %q", s)
	}
	result, err := strconv.Atoi(tokens[1])
	if err != nil {
		return RawResponse{}, errors.Wrapf(err, "malformed response result code: %q", s)
	}
	return RawResponse{
		MirrorCode: mirror,
		ResultCode: ResultCode(result),
		Message:    strings.Join(tokens[2:], " "),
	}, nil
}

// FormatField formats a single numeric field with the given printf-style
// precision, then trims trailing zeros and a trailing dot, matching the
// RAPID parser's expectations.
func FormatField(format string, v float64) string {
	s := fmt.Sprintf(format, v)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

// FormatFields formats a sequence of float64 values with the given
// precision format, trims each and joins them space-separated with a
// trailing space (matching the original server's body construction).
func FormatFields(format string, values ...float64) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(FormatField(format, v))
		b.WriteByte(' ')
	}
	return b.String()
}

// FormatInts formats a sequence of integers space-separated with a
// trailing space, used for conf data (`%d` fields, no trimming needed).
func FormatInts(values ...int) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(' ')
	}
	return b.String()
}
