package outbox

import "encoding/binary"

// Key layout, all under the outbox/ prefix:
//
//	outbox/q/{seq 8B BE}    pending action record, FIFO by seq
//	outbox/id/{actionId}    action id -> seq, for duplicate detection
//	outbox/dead/{seq}       dead-lettered action record
//	outbox/meta             next sequence number (8B BE)
const (
	prefixQueue = "outbox/q/"
	prefixID    = "outbox/id/"
	prefixDead  = "outbox/dead/"
	metaKeyStr  = "outbox/meta"
)

func queueKey(seq uint64) []byte {
	key := make([]byte, len(prefixQueue)+8)
	copy(key, prefixQueue)
	binary.BigEndian.PutUint64(key[len(prefixQueue):], seq)
	return key
}

func idKey(actionID string) []byte {
	return append([]byte(prefixID), actionID...)
}

func deadKey(seq uint64) []byte {
	key := make([]byte, len(prefixDead)+8)
	copy(key, prefixDead)
	binary.BigEndian.PutUint64(key[len(prefixDead):], seq)
	return key
}

func metaKey() []byte { return []byte(metaKeyStr) }

func seqFromQueueKey(key []byte) (uint64, bool) {
	if len(key) != len(prefixQueue)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(prefixQueue):]), true
}

func seqFromDeadKey(key []byte) (uint64, bool) {
	if len(key) != len(prefixDead)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(prefixDead):]), true
}
