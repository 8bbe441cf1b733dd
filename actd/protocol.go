/*Package actd speaks the actd wire protocol: the line-oriented ASCII
interface exposed by actuator daemons and by the simulator in cmd/actsim.

Requests are single lines terminated by \n:

	CFG <id> <kp> <kd> <ki> <accel> <maxtorque> <0|1>
	MOV <id> <pos>
	MOV <id> <pos> <vel>
	STA <id>

Responses begin with a code byte: % for acknowledged, ! for rejected.  STA
replies carry "pos vel" after the code, or nothing at all when the daemon has
no state to report (power-up, encoder fault); the empty reply is part of the
protocol, not an error.

On lossy serial links, frames may carry a CRC-CCITT suffix "*XXXX" computed
over the body.  Both sides verify and strip it when checksums are enabled.
*/
package actd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snksoft/crc"
)

const (
	// OKCode is the first byte of an acknowledged response
	OKCode = byte('%')

	// BadReqCode is the first byte of a rejected response
	BadReqCode = byte('!')

	// Terminator ends every frame in both directions
	Terminator = '\n'

	checkSep = '*'
)

// ErrBadFrame is generated when a checksummed frame fails verification.
type ErrBadFrame struct {
	frame string
}

func (e ErrBadFrame) Error() string {
	return fmt.Sprintf("actd: bad frame check on %q", e.frame)
}

type response struct {
	code byte
	body string
}

func (r response) isOK() bool {
	return r.code == OKCode
}

func parseResponse(raw []byte) response {
	if len(raw) == 0 {
		return response{}
	}
	// strip any terminators left by partial framing
	for len(raw) > 0 && raw[len(raw)-1] == Terminator {
		raw = raw[:len(raw)-1]
	}
	if len(raw) == 0 {
		return response{}
	}
	return response{code: raw[0], body: string(raw[1:])}
}

// appendCheck suffixes body with its CRC-CCITT in the *XXXX form.
func appendCheck(body string) string {
	sum := crc.CalculateCRC(crc.CCITT, []byte(body))
	return fmt.Sprintf("%s%c%04X", body, checkSep, sum&0xFFFF)
}

// stripCheck verifies and removes a *XXXX suffix.  With required false, a
// frame without a suffix passes through untouched.
func stripCheck(frame string, required bool) (string, error) {
	idx := strings.LastIndexByte(frame, checkSep)
	if idx < 0 {
		if required {
			return "", ErrBadFrame{frame}
		}
		return frame, nil
	}
	body, sumS := frame[:idx], frame[idx+1:]
	want, err := strconv.ParseUint(sumS, 16, 16)
	if err != nil {
		return "", ErrBadFrame{frame}
	}
	got := crc.CalculateCRC(crc.CCITT, []byte(body)) & 0xFFFF
	if got != want {
		return "", ErrBadFrame{frame}
	}
	return body, nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'G', -1, 64)
}
