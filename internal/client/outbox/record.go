package outbox

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
)

// Action record: headerLen(4B BE) | header JSON | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type recordHeader struct {
	ActionID   string `json:"actionId"`
	Retries    int    `json:"retries"`
	EnqueuedMs int64  `json:"enqueuedMs"`
	LastError  string `json:"lastError,omitempty"`
}

func encodeRecord(h recordHeader, payload []byte) []byte {
	header, _ := json.Marshal(h)
	out := make([]byte, 0, 4+len(header)+len(payload)+4)
	var hb [4]byte
	binary.BigEndian.PutUint32(hb[:], uint32(len(header)))
	out = append(out, hb[:]...)
	out = append(out, header...)
	out = append(out, payload...)
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	out = append(out, cb[:]...)
	return out
}

func decodeRecord(b []byte) (recordHeader, []byte, bool) {
	if len(b) < 8 {
		return recordHeader{}, nil, false
	}
	hlen := binary.BigEndian.Uint32(b[:4])
	if int(4+hlen+4) > len(b) {
		return recordHeader{}, nil, false
	}
	headerEnd := 4 + int(hlen)
	header := b[4:headerEnd]
	payload := b[headerEnd : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return recordHeader{}, nil, false
	}
	var h recordHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return recordHeader{}, nil, false
	}
	return h, append([]byte(nil), payload...), true
}
