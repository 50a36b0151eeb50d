package primetime

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
)

// MethodIsPrime is the only supported method.
const MethodIsPrime = "isPrime"

// ErrMalformed is returned for requests that do not follow the protocol.
var ErrMalformed = errors.New("malformed request")

// Request is a decoded isPrime request.
type Request struct {
	Method *string          `json:"method"`
	Number *json.RawMessage `json:"number"`
}

// Response answers a well-formed request.
type Response struct {
	Method string `json:"method"`
	Prime  bool   `json:"prime"`
}

// ErrorResponse is sent before closing on a malformed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParseRequest decodes one request line and returns the requested number.
func ParseRequest(line []byte) (json.Number, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return "", errors.Join(ErrMalformed, err)
	}
	if req.Method == nil || *req.Method != MethodIsPrime {
		return "", ErrMalformed
	}
	if req.Number == nil {
		return "", ErrMalformed
	}

	// Only JSON numbers are accepted; strings, bools and null are not
	raw := bytes.TrimSpace(*req.Number)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return "", ErrMalformed
	}
	return json.Number(raw), nil
}

// IsPrime reports whether n is a prime natural number. Non-integral values,
// negative values and integers beyond uint64 are not prime.
func IsPrime(n json.Number) bool {
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return false
	}
	if v < 2 {
		return false
	}
	// Baillie-PSW is exact below 2^64
	return new(big.Int).SetUint64(v).ProbablyPrime(0)
}
