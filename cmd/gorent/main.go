// Command gorent is a BitTorrent client core: bencode decoding,
// .torrent metadata inspection, tracker announces, peer handshakes,
// and single/full-file piece downloads.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gorent/bencode"
	"gorent/download"
	"gorent/fetch"
	"gorent/magnet"
	"gorent/peer"
	"gorent/torrentfile"
	"gorent/tracker"
)

// peerID is the reference value from the spec glossary: any stable
// 20-byte pattern satisfies the protocol.
var peerID = [20]byte{'0', '0', '1', '1', '2', '2', '3', '3', '4', '4', '5', '5', '6', '6', '7', '7', '8', '8', '9', '9'}

const listenPort uint16 = 6881

type cli struct {
	Verbose bool `short:"v" help:"Enable debug-level logging."`

	Decode         decodeCmd         `cmd:"" help:"Print the JSON-like textual form of a bencoded string."`
	Info           infoCmd           `cmd:"" help:"Print a .torrent file's metadata."`
	Peers          peersCmd          `cmd:"" help:"Announce to the tracker and print the peer list."`
	Handshake      handshakeCmd      `cmd:"" help:"Perform a peer handshake and print the peer's id."`
	DownloadPiece  downloadPieceCmd  `cmd:"download_piece" help:"Download and verify a single piece."`
	Download       downloadCmd       `cmd:"" help:"Download the full file."`
	MagnetParse    magnetParseCmd    `cmd:"magnet_parse" help:"Parse a magnet URI and print its trackers and info hash."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c, kong.Name("gorent"), kong.Description("A BitTorrent client core."))

	level := zerolog.InfoLevel
	if c.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

type decodeCmd struct {
	Bencoded string `arg:"" help:"A bencoded string, e.g. i42e or 4:spam."`
}

func (c *decodeCmd) Run() error {
	v, _, err := bencode.Decode([]byte(c.Bencoded))
	if err != nil {
		return err
	}
	out, err := json.Marshal(bencode.ToAny(v))
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type infoCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to a .torrent file."`
}

func (c *infoCmd) Run() error {
	tf, err := openTorrent(c.File)
	if err != nil {
		return err
	}
	infoHash, err := tf.Info.Hash()
	if err != nil {
		return err
	}

	fmt.Printf("Tracker URL: %s\n", tf.Announce)
	fmt.Printf("Length: %d\n", tf.Info.Length)
	fmt.Printf("Info Hash: %s\n", infoHash)
	fmt.Printf("Piece Length: %d\n", tf.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, p := range tf.Info.Pieces {
		fmt.Println(hex.EncodeToString(p[:]))
	}
	return nil
}

type peersCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to a .torrent file."`
}

func (c *peersCmd) Run() error {
	tf, err := openTorrent(c.File)
	if err != nil {
		return err
	}
	infoHash, err := tf.Info.Hash()
	if err != nil {
		return err
	}
	peers, err := tracker.DiscoverPeers(tf.Announce, infoHash, peerID, listenPort, tf.Info.Length)
	if err != nil {
		return err
	}
	for _, p := range peers {
		fmt.Println(p.String())
	}
	return nil
}

type handshakeCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to a .torrent file."`
	Addr string `arg:"" help:"Peer address, ip:port."`
}

func (c *handshakeCmd) Run() error {
	tf, err := openTorrent(c.File)
	if err != nil {
		return err
	}
	infoHash, err := tf.Info.Hash()
	if err != nil {
		return err
	}
	sess, err := peer.Dial(c.Addr, infoHash, peerID)
	if err != nil {
		return err
	}
	defer sess.Close()
	fmt.Printf("Peer ID: %s\n", hex.EncodeToString(sess.PeerID[:]))
	return nil
}

type downloadPieceCmd struct {
	Out   string `short:"o" required:"" help:"Output file path."`
	File  string `arg:"" type:"existingfile" help:"Path to a .torrent file."`
	Index int    `arg:"" help:"Zero-based piece index."`
}

func (c *downloadPieceCmd) Run() error {
	tf, err := openTorrent(c.File)
	if err != nil {
		return err
	}
	infoHash, err := tf.Info.Hash()
	if err != nil {
		return err
	}
	peers, err := tracker.DiscoverPeers(tf.Announce, infoHash, peerID, listenPort, tf.Info.Length)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		return fmt.Errorf("tracker returned zero peers")
	}

	var lastErr error
	for _, p := range peers {
		sess, err := peer.Dial(p.String(), infoHash, peerID)
		if err != nil {
			lastErr = err
			continue
		}
		if err := sess.AwaitUnchoke(time.Now().Add(30 * time.Second)); err != nil {
			sess.Close()
			lastErr = err
			continue
		}
		if !sess.Bitfield.Has(c.Index) {
			sess.Close()
			continue
		}

		buf, err := fetch.Piece(sess, c.Index, tf.Info.PieceSize(c.Index), tf.Info.Pieces[c.Index])
		sess.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return download.Save(c.Out, buf)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no peer in the swarm has piece %d", c.Index)
	}
	return lastErr
}

type downloadCmd struct {
	Out  string `short:"o" required:"" help:"Output file path."`
	File string `arg:"" type:"existingfile" help:"Path to a .torrent file."`
}

func (c *downloadCmd) Run() error {
	tf, err := openTorrent(c.File)
	if err != nil {
		return err
	}
	infoHash, err := tf.Info.Hash()
	if err != nil {
		return err
	}
	peers, err := tracker.DiscoverPeers(tf.Announce, infoHash, peerID, listenPort, tf.Info.Length)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		return fmt.Errorf("tracker returned zero peers")
	}

	log.Info().Int("peers", len(peers)).Str("name", tf.Info.Name).Msg("starting download")
	data, err := download.New(tf, infoHash, peerID).Run(peers)
	if err != nil {
		return err
	}
	if err := download.Save(c.Out, data); err != nil {
		return err
	}
	log.Info().Str("path", c.Out).Msg("download complete")
	return nil
}

type magnetParseCmd struct {
	URI string `arg:"" help:"A magnet: URI."`
}

func (c *magnetParseCmd) Run() error {
	m, err := magnet.Parse(c.URI)
	if err != nil {
		return err
	}
	fmt.Printf("Info Hash: %s\n", hex.EncodeToString(m.InfoHash[:]))
	for _, t := range m.Trackers {
		fmt.Printf("Tracker URL: %s\n", t)
	}
	return nil
}

func openTorrent(path string) (*torrentfile.TorrentFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return torrentfile.Open(f)
}
