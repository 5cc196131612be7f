package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = ">" // payload request of a two-step command, sent without CRLF

	// Response Codes
	OK          = "OK"
	ERROR       = "ERROR"
	MQTTPubOK   = "+MQTTPUB:OK"
	MQTTPubFail = "+MQTTPUB:FAIL"

	// In-band framing and metadata
	HTTPClientHeader = "+HTTPCLIENT:"
	ContentRange     = "ContentRange:bytes"

	// URCs (Unsolicited Result Codes)
	UrcReady             = "ready"
	UrcWifiConnected     = "WIFI CONNECTED"
	UrcWifiGotIP         = "WIFI GOT IP"
	UrcWifiDisconnect    = "WIFI DISCONNECT"
	UrcMQTTConnected     = "+MQTTCONNECTED"
	UrcMQTTDisconnected  = "+MQTTDISCONNECTED"
	UrcMQTTSubscribeRecv = "+MQTTSUBRECV"
)

// Terminal response lines as they appear on the wire. Terminal tokens only
// match when the whole frame is exactly one of these.
var (
	LineOK          = []byte(OK + CRLF)
	LineError       = []byte(ERROR + CRLF)
	LineMQTTPubOK   = []byte(MQTTPubOK + CRLF)
	LineMQTTPubFail = []byte(MQTTPubFail + CRLF)
)

type ResponseType int

const (
	TypeData   ResponseType = iota // Intermediate command output
	TypeFinal                      // OK, ERROR, publish ack/nack
	TypeURC                        // Asynchronous notifications
	TypeMeta                       // ContentRange metadata
	TypeBinary                     // Frame carrying a declared binary payload
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeMeta:
		return "meta"
	case TypeBinary:
		return "binary"
	default:
		return "data"
	}
}
