package magnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractsAllRecognizedKeys(t *testing.T) {
	uri := "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" +
		"&dn=sample.txt" +
		"&tr=http%3A%2F%2Ftracker.test%2Fannounce" +
		"&tr=udp%3A%2F%2Ftracker2.test%3A80" +
		"&x.pe=1.2.3.4%3A6881"

	m, err := Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, [20]byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}, m.InfoHash)
	assert.Equal(t, "sample.txt", m.DisplayName)
	assert.Equal(t, []string{"http://tracker.test/announce", "udp://tracker2.test:80"}, m.Trackers)
	assert.Equal(t, []string{"1.2.3.4:6881"}, m.PeerAddrs)
}

func TestParseRejectsMissingXt(t *testing.T) {
	_, err := Parse("magnet:?dn=sample.txt")
	assert.Error(t, err)
}

func TestParseRejectsMalformedBtih(t *testing.T) {
	_, err := Parse("magnet:?xt=urn:btih:nothex")
	assert.Error(t, err)
}

func TestParseRejectsNonMagnetURI(t *testing.T) {
	_, err := Parse("http://example.com")
	assert.Error(t, err)
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	uri := "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa&ws=http://example.com/file"
	m, err := Parse(uri)
	require.NoError(t, err)
	assert.Empty(t, m.Trackers)
}
