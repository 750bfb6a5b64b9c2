// Package viewxprotocol implements the client side of the iViewX remote
// command protocol spoken by SMI eye trackers over UDP.
//
// Protocol Format:
//
//	Command (client -> tracker):  <KEYWORD> [arg1 arg2 ... argN]\n
//	Reply   (tracker -> client):  <KEYWORD> [field1 field2 ... fieldN]
//	Event   (tracker -> client):  <KEYWORD> [field1 ... fieldN]   (unsolicited)
//
// Example Session:
//
//	CLI: ET_SRT
//	TRK: ET_SRT 250
//	CLI: ET_CAL 9
//	TRK: ET_CAL 9
//	TRK: ET_CHG 1
//	CLI: ET_ACC
//	TRK: ET_ACC 2
package viewxprotocol

import "time"

// Protocol constants.
const (
	// DefaultPort is the UDP port iViewX listens on for remote commands.
	DefaultPort = 4444

	// LineTerminator ends every outbound command datagram.
	LineTerminator = "\n"

	// MaxDatagramSize is the largest command or reply accepted, in bytes.
	MaxDatagramSize = 2048

	// MaxReceiveSize is the receive buffer size. It holds any UDP payload,
	// so oversized datagrams arrive whole instead of silently truncated.
	MaxReceiveSize = 65535

	// MaxKeywordLength bounds the length of a command keyword.
	MaxKeywordLength = 16

	// ProbeTimeout is the default timeout for the liveness probe sent on connect.
	ProbeTimeout = 2 * time.Second

	// ConnectionTimeout is the timeout for resolving and dialing the tracker address.
	ConnectionTimeout = 5 * time.Second
)

// Command keywords understood by the tracker.
const (
	KeywordCalibrate            = "ET_CAL"
	KeywordAcceptPoint          = "ET_ACC"
	KeywordCancelCalibration    = "ET_BRK"
	KeywordCalibrationParam     = "ET_CPA"
	KeywordCalibrationArea      = "ET_CSZ"
	KeywordDefaultPoints        = "ET_DEF"
	KeywordCheckLevel           = "ET_LEV"
	KeywordCalibrationPoint     = "ET_PNT"
	KeywordDriftCorrection      = "ET_RCL"
	KeywordValidate             = "ET_VLS"
	KeywordValidatePoint        = "ET_VLX"
	KeywordCalibrationResults   = "ET_RES"
	KeywordDataFormat           = "ET_FRM"
	KeywordStartStreaming       = "ET_STR"
	KeywordStopStreaming        = "ET_EST"
	KeywordSampleRate           = "ET_SRT"
	KeywordSample               = "ET_SPL"
	KeywordCalibrationPointMove = "ET_CHG"
	KeywordCalibrationFinished  = "ET_FIN"
)
