package fingerprint

import (
	"encoding/binary"
	"hash"
	"math/bits"
)

const rollingRotate = 5

// rolling is a rotate-xor hash over the byte stream. It is linear over
// GF(2): any single changed byte always changes the sum, but two changes
// can cancel. That is enough to catch one diverged sprite and no more.
type rolling struct {
	sum uint64
}

var _ hash.Hash64 = (*rolling)(nil)

// NewRolling returns the default, deliberately weak, digest.
func NewRolling() hash.Hash64 {
	return &rolling{}
}

func (r *rolling) Write(p []byte) (int, error) {
	for _, b := range p {
		r.sum = bits.RotateLeft64(r.sum, rollingRotate) ^ uint64(b)
	}
	return len(p), nil
}

func (r *rolling) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, r.sum)
}

func (r *rolling) Reset()         { r.sum = 0 }
func (r *rolling) Size() int      { return 8 }
func (r *rolling) BlockSize() int { return 1 }
func (r *rolling) Sum64() uint64  { return r.sum }
