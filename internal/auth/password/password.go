// Package password hashes admin passwords with Argon2id in the PHC string
// format ($argon2id$v=19$m=..,t=..,p=..$salt$hash).
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const saltLen = 16

var errMalformed = errors.New("malformed argon2id hash")

// params are the Argon2id cost settings stored inside each hash.
type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// current is what new hashes use. Stored hashes with other settings are
// upgraded on the next successful login.
var current = params{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

// Hash returns an encoded Argon2id hash of password.
func Hash(password string) (string, error) {
	return hashWith(password, current)
}

func hashWith(password string, p params) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash. Malformed hashes never match.
func Verify(password, encoded string) bool {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return subtle.ConstantTimeCompare(key, check) == 1
}

// NeedsRehash reports whether encoded was produced with settings other than
// the current ones.
func NeedsRehash(encoded string) bool {
	p, _, _, err := decode(encoded)
	return err != nil || p != current
}

func decode(encoded string) (params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return params{}, nil, nil, errMalformed
	}

	var p params
	for _, field := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(field, "=")
		if !ok {
			return params{}, nil, nil, errMalformed
		}
		var err error
		switch name {
		case "m":
			p.memory, err = parseUint32(raw)
		case "t":
			p.time, err = parseUint32(raw)
		case "p":
			var threads uint64
			threads, err = strconv.ParseUint(raw, 10, 8)
			p.threads = uint8(threads)
		default:
			err = errMalformed
		}
		if err != nil {
			return params{}, nil, nil, errMalformed
		}
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return params{}, nil, nil, errMalformed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params{}, nil, nil, errMalformed
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, errMalformed
	}
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

func parseUint32(raw string) (uint32, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	return uint32(v), err
}
