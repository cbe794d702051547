package codec

import "encoding/json"

// Result codes. The first three are the generic protocol outcomes; the
// lower-cased codes are backend failures carried through unchanged.
const (
	ResultOK                = "OK"
	ResultIllegalArgument   = "ILLEGAL_ARGUMENT"
	ResultInvalidParameters = "INVALID_PARAMETERS"

	ResultControllerDisconnected = "controllerDisconnected"
	ResultNoFreeSlots            = "noFreeSlots"
	ResultInvalidID              = "invalidId"
	ResultInvalidPlayer          = "invalidPlayer"
	ResultIllegalState           = "illegalState"
	ResultInsufficientRights     = "insufficientRights"
	ResultTimedOut               = "timedOut"
)

// Result is the outcome of a request: a code plus optional typed data.
type Result struct {
	Code string          `json:"code"`
	Data json.RawMessage `json:"data,omitempty"`
}

func OK(data any) Result {
	if data == nil {
		return Result{Code: ResultOK}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Result{Code: ResultIllegalArgument}
	}
	return Result{Code: ResultOK, Data: raw}
}

func Fail(code string) Result {
	return Result{Code: code}
}

func (r Result) IsOK() bool {
	return r.Code == ResultOK
}

// ResultDataAs decodes the result payload into T. An empty payload yields
// the zero value.
func ResultDataAs[T any](r Result) (T, error) {
	var v T
	if len(r.Data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(r.Data, &v)
	return v, err
}
