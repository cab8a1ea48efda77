// Package magnet parses the textual grammar of magnet URIs. Metadata
// exchange over the peer extension protocol is not implemented: this
// is parse-only, per the exclusions in the system overview.
package magnet

import (
	"net/url"
	"strings"

	"gorent/bterrors"
)

// Magnet is the result of parsing a magnet: URI.
type Magnet struct {
	InfoHash    [20]byte
	DisplayName string
	Trackers    []string
	PeerAddrs   []string
}

const btihPrefix = "urn:btih:"

// Parse extracts the recognized keys (xt, dn, tr, x.pe) from a magnet
// URI. xt MUST appear exactly once and be of the form
// urn:btih:<40-hex-char info hash>. Unknown keys are ignored.
func Parse(uri string) (*Magnet, error) {
	if !strings.HasPrefix(uri, "magnet:?") {
		return nil, bterrors.NewMalformedTorrent("not a magnet URI", nil)
	}

	query, err := url.ParseQuery(strings.TrimPrefix(uri, "magnet:?"))
	if err != nil {
		return nil, bterrors.NewMalformedTorrent("malformed magnet query string", err)
	}

	xt := query["xt"]
	if len(xt) != 1 {
		return nil, bterrors.NewMalformedTorrent("magnet URI must have exactly one xt parameter", nil)
	}
	infoHash, err := parseBtih(xt[0])
	if err != nil {
		return nil, err
	}

	m := &Magnet{
		InfoHash:  infoHash,
		Trackers:  query["tr"],
		PeerAddrs: query["x.pe"],
	}
	if dn := query["dn"]; len(dn) > 0 {
		m.DisplayName = dn[0]
	}
	return m, nil
}

func parseBtih(xt string) ([20]byte, error) {
	var hash [20]byte
	if !strings.HasPrefix(xt, btihPrefix) {
		return hash, bterrors.NewMalformedTorrent("xt parameter is not a urn:btih value", nil)
	}
	hex := strings.TrimPrefix(xt, btihPrefix)
	if len(hex) != 40 {
		return hash, bterrors.NewMalformedTorrent("btih hash must be 40 hex characters", nil)
	}
	n, err := decodeHex(hash[:], hex)
	if err != nil || n != 20 {
		return hash, bterrors.NewMalformedTorrent("btih hash is not valid hex", err)
	}
	return hash, nil
}

func decodeHex(dst []byte, src string) (int, error) {
	for i := 0; i < len(dst); i++ {
		hi, err := hexDigit(src[2*i])
		if err != nil {
			return 0, err
		}
		lo, err := hexDigit(src[2*i+1])
		if err != nil {
			return 0, err
		}
		dst[i] = hi<<4 | lo
	}
	return len(dst), nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, bterrors.NewMalformedTorrent("invalid hex digit", nil)
	}
}
