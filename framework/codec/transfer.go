package codec

import (
	"encoding/json"
	"time"
)

// ControllerID is the destination sentinel meaning "terminates at the
// controller". Any other destination makes the controller relay the
// envelope verbatim without touching the inner payload.
const ControllerID = ""

// Transfer is the line-delimited JSON envelope around every packet.
type Transfer struct {
	TypeID string          `json:"typeId"`
	Data   json.RawMessage `json:"data"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	SentAt int64           `json:"sentAt"`
}

func NewTransfer(from, to string, p Packet) (*Transfer, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return &Transfer{
		TypeID: p.PacketID(),
		Data:   data,
		From:   from,
		To:     to,
		SentAt: time.Now().UnixMilli(),
	}, nil
}

func (t *Transfer) ForController() bool {
	return t.To == ControllerID
}

// EncodeLine renders the envelope as one newline-terminated JSON line.
func (t *Transfer) EncodeLine() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func DecodeLine(line []byte) (*Transfer, error) {
	var t Transfer
	if err := json.Unmarshal(line, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
