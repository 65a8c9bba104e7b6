package protocol

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

/**********************************************************************
 * FRAME STRUCTURE
 * BYTE                    MEANING
 * 0                       Start marker (0x7E)
 * 1                       Packet type
 * 2-3                     Destination address
 * 4                       AM type (0x0B for sensor reports)
 * 5                       AM group
 * 6                       Payload length (PL)
 * 7 .. 7+PL-1             Payload
 * 7+PL .. 7+PL+1          CRC, little-endian
 * 7+PL+2                  End marker (0x7E)
 **********************************************************************/

const (
	FrameFlag  byte = 0x7E
	EscapeByte byte = 0x7D
	EscapeXor  byte = 0x20

	// Frame type used by the base station for unacknowledged packets
	PacketNoAck byte = 0x45

	// AM type of a sensor report
	SensorSignature byte = 0x0B

	DefaultMaxFrameLen = 300

	headerLen   = 7
	trailerLen  = 3
	minFrameLen = headerLen + trailerLen
)

// Absolute offsets inside an unescaped frame.
const (
	SignatureOffset   = 4
	LengthOffset      = 6
	PayloadOffset     = 7
	NodeOffset        = 9
	BatteryOffset     = 18
	TemperatureOffset = 20
	LightOffset       = 22

	// Smallest payload that carries every sensor field
	SensorPayloadLen = LightOffset + 2 - PayloadOffset

	// Unescaped length of a minimal sensor report
	SensorFrameLen = PayloadOffset + SensorPayloadLen + trailerLen
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// frameCRC computes the checksum over TYPE..PAYLOAD of an unescaped frame.
func frameCRC(frame []byte) uint16 {
	return crc16.Checksum(frame[1:len(frame)-trailerLen], crcTable)
}

// frameCRCField reads the CRC carried by an unescaped frame.
func frameCRCField(frame []byte) uint16 {
	return binary.LittleEndian.Uint16(frame[len(frame)-trailerLen:])
}

// AppendFrame encodes one frame onto dst, escaping every marker byte
// between the start and end flags. The payload must fit in 255 bytes.
func AppendFrame(dst []byte, packetType byte, dest uint16, amType, amGroup byte, payload []byte) []byte {
	raw := make([]byte, 0, headerLen+len(payload)+trailerLen)
	raw = append(raw, FrameFlag, packetType)
	raw = binary.LittleEndian.AppendUint16(raw, dest)
	raw = append(raw, amType, amGroup, byte(len(payload)))
	raw = append(raw, payload...)
	raw = append(raw, 0, 0, FrameFlag)
	binary.LittleEndian.PutUint16(raw[len(raw)-trailerLen:], frameCRC(raw))

	dst = append(dst, raw[0], raw[1])
	for _, b := range raw[2 : len(raw)-1] {
		if b == FrameFlag || b == EscapeByte {
			dst = append(dst, EscapeByte, b^EscapeXor)
			continue
		}
		dst = append(dst, b)
	}
	return append(dst, FrameFlag)
}

// SensorPayload lays out a sensor report payload.
func SensorPayload(node, batt, temp, light uint16) []byte {
	payload := make([]byte, SensorPayloadLen)
	binary.LittleEndian.PutUint16(payload[NodeOffset-PayloadOffset:], node)
	binary.LittleEndian.PutUint16(payload[BatteryOffset-PayloadOffset:], batt)
	binary.LittleEndian.PutUint16(payload[TemperatureOffset-PayloadOffset:], temp)
	binary.LittleEndian.PutUint16(payload[LightOffset-PayloadOffset:], light)
	return payload
}

// AppendSensorFrame encodes a complete sensor report as sent by the base
// station.
func AppendSensorFrame(dst []byte, node, batt, temp, light uint16) []byte {
	return AppendFrame(dst, PacketNoAck, 0xFFFF, SensorSignature, 0x7D, SensorPayload(node, batt, temp, light))
}
