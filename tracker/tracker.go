// Package tracker implements the classic HTTP-tracker announce used to
// discover a swarm's peers for a given info-hash.
package tracker

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"gorent/bencode"
	"gorent/bterrors"
)

const requestTimeout = 15 * time.Second

// Peer is a swarm member advertised by the tracker: an IPv4 address
// and a TCP port.
type Peer struct {
	IP   net.IP
	Port uint16
}

// String renders the peer as "ip:port", the form net.Dial accepts.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// DiscoverPeers announces to the tracker at announceURL and returns the
// compact peer list it hands back.
func DiscoverPeers(announceURL string, infoHash, peerID [20]byte, port uint16, left int64) ([]Peer, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, bterrors.NewTrackerError(announceURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, bterrors.NewTrackerError(announceURL,
			fmt.Errorf("unsupported announce scheme %q (only http/https trackers are supported)", u.Scheme))
	}

	query := url.Values{
		"port":       {strconv.Itoa(int(port))},
		"uploaded":   {"0"},
		"downloaded": {"0"},
		"compact":    {"1"},
		"left":       {strconv.FormatInt(left, 10)},
	}
	u.RawQuery = query.Encode() + "&info_hash=" + percentEncode(infoHash[:]) + "&peer_id=" + percentEncode(peerID[:])

	client := resty.New().SetTimeout(requestTimeout)
	resp, err := client.R().Get(u.String())
	if err != nil {
		return nil, bterrors.NewTrackerError(announceURL, err)
	}
	if resp.IsError() {
		return nil, bterrors.NewTrackerError(announceURL, fmt.Errorf("tracker returned status %s", resp.Status()))
	}

	return parseAnnounceResponse(announceURL, resp.Body())
}

func parseAnnounceResponse(announceURL string, body []byte) ([]Peer, error) {
	root, _, err := bencode.Decode(body)
	if err != nil {
		return nil, bterrors.NewTrackerError(announceURL, fmt.Errorf("non-bencode response body: %w", err))
	}
	if root.Kind != bencode.KindDict {
		return nil, bterrors.NewTrackerError(announceURL, fmt.Errorf("response is not a bencoded dictionary"))
	}
	if reasonV, ok := root.Get("failure reason"); ok && reasonV.Kind == bencode.KindString {
		return nil, bterrors.NewTrackerError(announceURL, fmt.Errorf("tracker failure: %s", reasonV.Str))
	}
	peersV, ok := root.Get("peers")
	if !ok || peersV.Kind != bencode.KindString {
		return nil, bterrors.NewTrackerError(announceURL, fmt.Errorf("response is missing compact \"peers\""))
	}
	return unmarshalCompactPeers(announceURL, peersV.Str)
}

const compactPeerSize = 6

func unmarshalCompactPeers(announceURL string, raw []byte) ([]Peer, error) {
	if len(raw)%compactPeerSize != 0 {
		return nil, bterrors.NewTrackerError(announceURL,
			fmt.Errorf("compact peers length %d is not a multiple of %d", len(raw), compactPeerSize))
	}
	peers := make([]Peer, len(raw)/compactPeerSize)
	for i := range peers {
		offset := i * compactPeerSize
		peers[i].IP = net.IP(append([]byte{}, raw[offset:offset+4]...))
		peers[i].Port = uint16(raw[offset+4])<<8 | uint16(raw[offset+5])
	}
	return peers, nil
}

// percentEncode escapes every byte of b as %XX, unconditionally —
// info_hash and peer_id are raw 20-byte identifiers, not text, so every
// byte (including ones that would otherwise be left unescaped, like
// ASCII letters) is encoded the same way.
func percentEncode(b []byte) string {
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		out = append(out, '%', hex[c>>4], hex[c&0x0F])
	}
	return string(out)
}
