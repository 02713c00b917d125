package radariq

import (
	"bytes"
	"fmt"

	"github.com/banshee-data/radariq/internal/frames"
	"github.com/banshee-data/radariq/internal/monitoring"
)

// Request subcodes and the reply subcode shared by every command.
const (
	subcodeRead  = 0x00
	subcodeReply = 0x01
	subcodeWrite = 0x02
)

// request performs one synchronous command exchange: flush stale input,
// send, then wait for the matching reply. Diagnostic messages arriving in
// between are logged and skipped. Not valid during capture, when the
// assembler owns the packet channel.
func (s *Sensor) request(req []byte) ([]byte, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.reader.Flush()
	if err := s.reader.Send(req); err != nil {
		return nil, err
	}
	return s.awaitReply(req[0])
}

// awaitReply polls the packet channel until an application reply for
// opcode arrives or the command deadline expires.
func (s *Sensor) awaitReply(opcode byte) ([]byte, error) {
	deadline := s.clock.After(s.cfg.commandTimeout)
	for {
		select {
		case payload := <-s.reader.Packets():
			if len(payload) > 0 && payload[0] == frames.OpMessage {
				logDiagnostic(payload)
				continue
			}
			if len(payload) < 2 || payload[0] != opcode || payload[1] != subcodeReply {
				return nil, fmt.Errorf("%w: sent %#02x, received % x",
					ErrProtocolViolation, opcode, payload)
			}
			return payload, nil
		case <-deadline:
			return nil, ErrTimeout
		}
	}
}

// logDiagnostic forwards a sensor diagnostic message to the log by
// severity. Diagnostics are never returned to command callers.
func logDiagnostic(payload []byte) {
	if len(payload) < 4 || payload[1] != subcodeReply {
		return
	}
	severity := payload[2]
	code := payload[3]
	text := string(bytes.TrimRight(payload[4:], "\x00"))

	var level string
	switch severity {
	case 0, 1:
		level = "DEBUG"
	case 2, 5:
		level = "INFO"
	case 3:
		level = "WARN"
	case 4:
		level = "ERROR"
	default:
		level = "INFO"
	}
	monitoring.Logf("radariq: sensor %s %d: %s", level, code, text)
}
