package auth

import (
	"bytes"
	"fmt"
)

// Credentials is a username/password pair for the portal or the canteen.
// It only ever lives in memory; Encode exists so embedding applications
// don't accidentally write the plaintext into serialized snapshots.
type Credentials struct {
	Username string
	Password string
}

// offset applied to every byte of the encoded blob
const byteShift = 10

// Encode obfuscates the credentials into a blob that isn't readable at a
// glance. This is NOT encryption and provides no confidentiality, it only
// keeps the plaintext out of casual view. Decode reverses it.
func (c Credentials) Encode() []byte {
	blob := make([]byte, 0, len(c.Username)+len(c.Password)+1)
	blob = append(blob, c.Username...)
	blob = append(blob, '\n')
	blob = append(blob, c.Password...)
	for i := range blob {
		blob[i] += byteShift
	}
	return blob
}

// Decode reverses Encode.
func Decode(blob []byte) (Credentials, error) {
	plain := make([]byte, len(blob))
	for i, b := range blob {
		plain[i] = b - byteShift
	}
	username, password, found := bytes.Cut(plain, []byte{'\n'})
	if !found {
		return Credentials{}, fmt.Errorf("malformed credentials blob: no separator")
	}
	return Credentials{
		Username: string(username),
		Password: string(password),
	}, nil
}
