package download

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gorent/torrentfile"
	"gorent/tracker"
)

func TestPeersPoolClaimAndRelease(t *testing.T) {
	peers := []tracker.Peer{{Port: 1}, {Port: 2}}
	pool := newPeersPool(peers)

	p1, ok := pool.claim()
	assert.True(t, ok)
	p2, ok := pool.claim()
	assert.True(t, ok)
	_, ok = pool.claim()
	assert.False(t, ok)

	pool.release(p1)
	back, ok := pool.claim()
	assert.True(t, ok)
	assert.Equal(t, p1, back)

	_ = p2
}

func TestWorkQueueClaimMatchingAndRequeue(t *testing.T) {
	items := []work{
		{index: 0, size: 100},
		{index: 1, size: 100},
		{index: 2, size: 100},
	}
	q := newWorkQueue(items)

	bf := []byte{0x40} // bit 1 set: piece index 1
	w, ok := q.claimMatching(bf)
	assert.True(t, ok)
	assert.Equal(t, 1, w.index)
	assert.False(t, q.isEmpty())

	// No remaining queued piece matches this bitfield.
	_, ok = q.claimMatching(bf)
	assert.False(t, ok)

	q.requeue(w)
	w2, ok := q.claimMatching(bf)
	assert.True(t, ok)
	assert.Equal(t, 1, w2.index)
}

func TestOutputWriteIsDisjointByPieceIndex(t *testing.T) {
	info := torrentfile.Info{Length: 20, PieceLength: 10}
	out := &output{buf: make([]byte, 20), info: info}

	out.write(0, []byte("0123456789"))
	out.write(1, []byte("abcdefghij"))

	assert.Equal(t, "0123456789abcdefghij", string(out.buf))
}

func TestRunFailsIfQueueNotDrained(t *testing.T) {
	tf := &torrentfile.TorrentFile{
		Info: torrentfile.Info{
			Length:      10,
			PieceLength: 10,
			Pieces:      []torrentfile.PieceHash{{}},
		},
	}
	c := New(tf, [20]byte{}, [20]byte{}).WithWorkers(1)

	// No peers available at all: every worker exits immediately, queue
	// never drains.
	_, err := c.Run(nil)
	assert.Error(t, err)
}
