package driver_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voice-driver/internal/driver"
)

func testKey() *[32]byte {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}

	return &key
}

func TestCryptoState_RoundTrip_AllModes(t *testing.T) {
	modes := []driver.CryptoMode{driver.CryptoModeNormal, driver.CryptoModeSuffix, driver.CryptoModeLite}
	key := testKey()

	for _, mode := range modes {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			cs := driver.NewCryptoState(mode, 1000)
			header := make([]byte, 12)
			binary.BigEndian.PutUint16(header[2:4], 7)
			binary.BigEndian.PutUint32(header[4:8], 42)
			payload := []byte("twenty millisecond opus frame!!")

			packet, err := cs.Seal(nil, key, header, payload)
			require.NoError(t, err)

			got, err := driver.Open(mode, key, packet, len(header))
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestCryptoState_LiteCounter_AdvancesAndIsObservedByNextCall(t *testing.T) {
	cs := driver.NewCryptoState(driver.CryptoModeLite, 1000)
	key := testKey()
	header := make([]byte, 12)

	for i := 0; i < 5; i++ {
		packet, err := cs.Seal(nil, key, header, []byte("frame"))
		require.NoError(t, err)

		suffix := packet[len(packet)-4:]
		assert.Equal(t, uint32(1000+i), binary.BigEndian.Uint32(suffix), "suffix must reflect the pre-increment counter for packet %d", i)
	}

	assert.Equal(t, uint32(1005), cs.LiteCounter())
}

func TestCryptoState_SuffixMode_ConsecutiveNoncesDiffer(t *testing.T) {
	cs := driver.NewCryptoState(driver.CryptoModeSuffix, 0)
	key := testKey()
	header := make([]byte, 12)

	a, err := cs.Seal(nil, key, header, []byte("frame"))
	require.NoError(t, err)
	b, err := cs.Seal(nil, key, header, []byte("frame"))
	require.NoError(t, err)

	assert.NotEqual(t, a[len(a)-24:], b[len(b)-24:])
}

func TestCryptoMode_PayloadOverhead(t *testing.T) {
	assert.Equal(t, 16, driver.CryptoModeNormal.PayloadOverhead())
	assert.Equal(t, 16+24, driver.CryptoModeSuffix.PayloadOverhead())
	assert.Equal(t, 16+4, driver.CryptoModeLite.PayloadOverhead())
}

func TestOpen_RejectsTamperedTag(t *testing.T) {
	cs := driver.NewCryptoState(driver.CryptoModeNormal, 0)
	key := testKey()
	header := make([]byte, 12)

	packet, err := cs.Seal(nil, key, header, []byte("frame"))
	require.NoError(t, err)

	packet[len(packet)-1] ^= 0xFF

	_, err = driver.Open(driver.CryptoModeNormal, key, packet, len(header))
	assert.Error(t, err)
}
