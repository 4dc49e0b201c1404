package contracts

import (
	"encoding/binary"
	"fmt"
	"time"
)

// TimestampCommandType is the command type of TimestampCommand.
const TimestampCommandType CommandType = "core.timestamp"

// TimestampCommand asserts that the transaction happened within [After, Before].
// A zero bound is open.
type TimestampCommand struct {
	After  time.Time
	Before time.Time
}

// CommandType implements CommandData.
func (TimestampCommand) CommandType() CommandType {
	return TimestampCommandType
}

// MarshalBinary encodes both bounds as little-endian unix nanoseconds, zero for open.
func (c TimestampCommand) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(unixNanos(c.After)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(unixNanos(c.Before)))

	return buf, nil
}

// decodeTimestampCommand is the registered decoder for TimestampCommandType.
func decodeTimestampCommand(data []byte) (CommandData, error) {
	if len(data) != 16 {
		return nil, fmt.Errorf("invalid timestamp command size: %d", len(data))
	}

	return TimestampCommand{
		After:  fromUnixNanos(int64(binary.LittleEndian.Uint64(data[0:8]))),
		Before: fromUnixNanos(int64(binary.LittleEndian.Uint64(data[8:16]))),
	}, nil
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
