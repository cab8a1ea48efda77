// Package torrentfile parses .torrent metadata files and derives the
// info-hash that identifies a swarm.
package torrentfile

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"

	"gorent/bencode"
	"gorent/bterrors"
)

// PieceHash is the fixed 20-byte SHA-1 digest of one piece.
type PieceHash [20]byte

// InfoHash is the 20-byte SHA-1 digest of the bencoded info dictionary;
// it is the swarm identifier used in both the tracker announce and the
// peer handshake.
type InfoHash [20]byte

// String renders the info hash as lowercase hex.
func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

// Info is the parsed "info" dictionary of a single-file torrent.
type Info struct {
	Length      int64
	Name        string
	PieceLength int64
	Pieces      []PieceHash

	// raw is the structured Value decoded straight from the source
	// file's info dictionary, additional keys and all. Hash re-encodes
	// raw rather than rebuilding a dictionary from the typed fields
	// above, which is what makes the re-encoding byte-identical to the
	// original info substring: Encode always emits canonical
	// (sorted-key) form, and real .torrent files already store info in
	// that form, so decode-then-encode is the identity (invariant 2).
	raw *bencode.Value
}

// NumPieces returns ceil(Length / PieceLength), the piece count the
// Pieces slice is expected to satisfy.
func (i Info) NumPieces() int {
	if i.PieceLength == 0 {
		return 0
	}
	return int((i.Length + i.PieceLength - 1) / i.PieceLength)
}

// Validate checks the pieces.len() == ceil(length / piece_length)
// invariant.
func (i Info) Validate() error {
	if got, want := len(i.Pieces), i.NumPieces(); got != want {
		return bterrors.NewMalformedTorrent(
			fmt.Sprintf("expected %d piece hashes for length %d at piece length %d, got %d",
				want, i.Length, i.PieceLength, got), nil)
	}
	return nil
}

// PieceSize returns the byte length of piece index i: PieceLength for
// every piece but the last, which is short by however much Length falls
// short of an even multiple.
func (i Info) PieceSize(index int) int64 {
	begin := int64(index) * i.PieceLength
	end := begin + i.PieceLength
	if end > i.Length {
		end = i.Length
	}
	return end - begin
}

// Hash computes the info-hash: SHA-1 of the canonical re-encoding of
// the info dictionary. It is a pure function of the decoded Info and
// never hashes the source file's raw bytes directly.
func (i Info) Hash() (InfoHash, error) {
	if i.raw == nil {
		return InfoHash{}, bterrors.NewMalformedTorrent("info dictionary was not parsed from a source file", nil)
	}
	return sha1.Sum(bencode.Encode(i.raw)), nil
}

// TorrentFile is the parsed content of a .torrent file: the tracker
// announce URL and the info dictionary.
type TorrentFile struct {
	Announce string
	Info     Info
}

// Open reads and parses a .torrent file from r.
func Open(r io.Reader) (*TorrentFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, bterrors.NewIoError("read torrent file", err)
	}
	root, _, err := bencode.Decode(data)
	if err != nil {
		return nil, err
	}
	if root.Kind != bencode.KindDict {
		return nil, bterrors.NewMalformedTorrent("top-level bencode value is not a dictionary", nil)
	}

	announceV, ok := root.Get("announce")
	if !ok || announceV.Kind != bencode.KindString {
		return nil, bterrors.NewMalformedTorrent("missing or malformed \"announce\"", nil)
	}

	infoV, ok := root.Get("info")
	if !ok || infoV.Kind != bencode.KindDict {
		return nil, bterrors.NewMalformedTorrent("missing or malformed \"info\" dictionary", nil)
	}

	if _, hasFiles := infoV.Get("files"); hasFiles {
		return nil, bterrors.NewMalformedTorrent("multi-file torrents are not supported", nil)
	}

	info, err := parseInfo(infoV)
	if err != nil {
		return nil, err
	}

	return &TorrentFile{
		Announce: string(announceV.Str),
		Info:     info,
	}, nil
}

func parseInfo(infoV *bencode.Value) (Info, error) {
	lengthV, ok := infoV.Get("length")
	if !ok || lengthV.Kind != bencode.KindInt {
		return Info{}, bterrors.NewMalformedTorrent("missing or malformed \"length\"", nil)
	}
	nameV, ok := infoV.Get("name")
	if !ok || nameV.Kind != bencode.KindString {
		return Info{}, bterrors.NewMalformedTorrent("missing or malformed \"name\"", nil)
	}
	pieceLengthV, ok := infoV.Get("piece length")
	if !ok || pieceLengthV.Kind != bencode.KindInt {
		return Info{}, bterrors.NewMalformedTorrent("missing or malformed \"piece length\"", nil)
	}
	piecesV, ok := infoV.Get("pieces")
	if !ok || piecesV.Kind != bencode.KindString {
		return Info{}, bterrors.NewMalformedTorrent("missing or malformed \"pieces\"", nil)
	}
	if len(piecesV.Str)%20 != 0 {
		return Info{}, bterrors.NewMalformedTorrent(
			fmt.Sprintf("\"pieces\" length %d is not a multiple of 20", len(piecesV.Str)), nil)
	}

	pieces := make([]PieceHash, len(piecesV.Str)/20)
	for i := range pieces {
		copy(pieces[i][:], piecesV.Str[i*20:(i+1)*20])
	}

	info := Info{
		Length:      lengthV.Int,
		Name:        string(nameV.Str),
		PieceLength: pieceLengthV.Int,
		Pieces:      pieces,
		raw:         infoV,
	}
	return info, info.Validate()
}
