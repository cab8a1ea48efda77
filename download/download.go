// Package download implements the worker-pool coordinator that drives
// many peer sessions in parallel to assemble a complete torrent.
package download

import (
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gorent/bterrors"
	"gorent/fetch"
	"gorent/peer"
	"gorent/torrentfile"
	"gorent/tracker"
)

// sessionDeadline bounds how long a worker waits for a peer to
// unchoke it before giving up on that peer.
const sessionDeadline = 30 * time.Second

func deadline() time.Time {
	return time.Now().Add(sessionDeadline)
}

// Workers is the default worker pool size.
const Workers = 5

// work is one queued piece awaiting download.
type work struct {
	index       int
	expectedSum [20]byte
	size        int64
}

// peersPool is a mutex-protected stack of peers not currently claimed
// by any worker.
type peersPool struct {
	mu    sync.Mutex
	peers []tracker.Peer
}

func newPeersPool(peers []tracker.Peer) *peersPool {
	return &peersPool{peers: append([]tracker.Peer(nil), peers...)}
}

// claim pops a peer off the pool, or reports ok=false if none remain.
func (p *peersPool) claim() (tracker.Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.peers) == 0 {
		return tracker.Peer{}, false
	}
	last := len(p.peers) - 1
	peer := p.peers[last]
	p.peers = p.peers[:last]
	return peer, true
}

// release returns a peer to the pool for another worker to try.
func (p *peersPool) release(peer tracker.Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers = append(p.peers, peer)
}

// workQueue is the mutex-protected sequence of pieces still needed.
type workQueue struct {
	mu    sync.Mutex
	items []work
}

func newWorkQueue(items []work) *workQueue {
	return &workQueue{items: items}
}

func (q *workQueue) isEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// claimMatching scans the queue under lock for the first piece whose
// index is set in bf, removes it, and returns it. The lock is dropped
// before the caller does any network I/O.
func (q *workQueue) claimMatching(bf peer.Bitfield) (work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.items {
		if bf.Has(w.index) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return w, true
		}
	}
	return work{}, false
}

func (q *workQueue) requeue(w work) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, w)
}

// output is the mutex-protected destination buffer; each worker's
// writes are disjoint by construction (determined solely by the
// claimed piece index), but the mutex is held for the duration of the
// slice copy for defense in depth.
type output struct {
	mu   sync.Mutex
	buf  []byte
	info torrentfile.Info
}

func (o *output) write(index int, data []byte) {
	begin := int64(index) * o.info.PieceLength
	o.mu.Lock()
	defer o.mu.Unlock()
	copy(o.buf[begin:begin+int64(len(data))], data)
}

// Coordinator runs the fixed worker pool against a torrent's peer list
// and assembles the complete file in memory.
type Coordinator struct {
	tf       *torrentfile.TorrentFile
	infoHash [20]byte
	peerID   [20]byte
	workers  int
}

// New builds a Coordinator for tf, identifying ourselves to peers as
// peerID, using the default worker count.
func New(tf *torrentfile.TorrentFile, infoHash, peerID [20]byte) *Coordinator {
	return &Coordinator{tf: tf, infoHash: infoHash, peerID: peerID, workers: Workers}
}

// WithWorkers overrides the worker pool size.
func (c *Coordinator) WithWorkers(n int) *Coordinator {
	c.workers = n
	return c
}

// Run drives peers through the pool until every piece is downloaded
// and verified, returning the assembled file contents.
func (c *Coordinator) Run(peers []tracker.Peer) ([]byte, error) {
	items := make([]work, c.tf.Info.NumPieces())
	for i := range items {
		items[i] = work{
			index:       i,
			expectedSum: c.tf.Info.Pieces[i],
			size:        c.tf.Info.PieceSize(i),
		}
	}

	pool := newPeersPool(peers)
	queue := newWorkQueue(items)
	out := &output{buf: make([]byte, c.tf.Info.Length), info: c.tf.Info}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(workerID, c.infoHash, c.peerID, pool, queue, out)
		}(i)
	}
	wg.Wait()

	if !queue.isEmpty() {
		return nil, bterrors.NewMalformedTorrent("download incomplete: work queue not drained", nil)
	}
	return out.buf, nil
}

// runWorker implements one worker's claim-peer / drive-queue loop.
func runWorker(workerID int, infoHash, peerID [20]byte, pool *peersPool, queue *workQueue, out *output) {
	for {
		p, ok := pool.claim()
		if !ok {
			return
		}

		sess, err := peer.Dial(p.String(), infoHash, peerID)
		if err != nil {
			log.Debug().Int("worker", workerID).Str("peer", p.String()).Err(err).Msg("dial failed")
			continue
		}

		if err := sess.AwaitUnchoke(deadline()); err != nil {
			log.Debug().Int("worker", workerID).Str("peer", p.String()).Err(err).Msg("unchoke failed")
			sess.Close()
			continue
		}

		drainQueueWithPeer(workerID, sess, pool, queue, out)
	}
}

// drainQueueWithPeer pulls pieces from the queue that this peer's
// bitfield advertises, until the queue has nothing it can serve or a
// fetch fails. On failure the peer is returned to the pool and the
// piece is re-enqueued, then control returns to runWorker to claim a
// fresh peer — the bug the reference implementation's downloader
// omits.
func drainQueueWithPeer(workerID int, sess *peer.Session, pool *peersPool, queue *workQueue, out *output) {
	for !queue.isEmpty() {
		w, ok := queue.claimMatching(sess.Bitfield)
		if !ok {
			break
		}

		buf, err := fetch.Piece(sess, w.index, w.size, w.expectedSum)
		if err != nil {
			log.Warn().Int("worker", workerID).Int("piece", w.index).Err(err).Msg("piece fetch failed")
			pool.release(peerFromSession(sess))
			queue.requeue(w)
			sess.Close()
			return
		}

		out.write(w.index, buf)
		if err := sess.SendHave(w.index); err != nil {
			log.Debug().Int("worker", workerID).Err(err).Msg("send have failed")
		}
		log.Info().Int("worker", workerID).Int("piece", w.index).Msg("piece complete")
	}
	sess.Close()
}

// peerFromSession reconstructs the tracker.Peer address a session was
// dialed against, so a failed peer can be pushed back onto the pool
// for another worker to retry.
func peerFromSession(sess *peer.Session) tracker.Peer {
	host, portStr, err := net.SplitHostPort(sess.Addr())
	if err != nil {
		return tracker.Peer{}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return tracker.Peer{}
	}
	return tracker.Peer{IP: net.ParseIP(host), Port: uint16(port)}
}

// Save writes data to path as a single atomic write: write to a
// temp file in the same directory, then rename over the destination.
func Save(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return bterrors.NewIoError("write temp output", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return bterrors.NewIoError("rename output into place", err)
	}
	return nil
}
