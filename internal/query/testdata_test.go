package query

import (
	"encoding/hex"
	"testing"
)

// wethNameResponseHex is a mainnet response to eth_call name() on WETH (chain 2).
const wethNameResponseHex = "01000051ced87ef0a0bb371964f793bb665a01435d57c9dc79b9fb6f31323f99f557ee0fa583718753cb3b35fe7c2e9bab2afde3f8cfdbeee0432804cb3c9146027a9401000000370100000001010002010000002a0000000930783132346330643601c02aaa39b223fe8d0a0e5c4f27ead9083c756cc20000000406fdde030100020100000095000000000124c0d60f319af73bad19735c2f795e3bf22c0cb3d6be77b5fbd3bc1cf197efdbfb506c000610e4cf31cfc001000000600000000000000000000000000000000000000000000000000000000000000020000000000000000000000000000000000000000000000000000000000000000d5772617070656420457468657200000000000000000000000000000000000000"

// opWethNameResponseHex is the same call answered on chain 24.
const opWethNameResponseHex = "0100007a2b6cae754910b87973fbbf95ca48fbe1ea6607d2584b572f986503f9addf2215980aad2a4d9ebdfed57db5de897dea818a9e0137f4e11f1d438e73ddfa391f00000000370100000001010018010000002a000000093078366562333233310142000000000000000000000000000000000000060000000406fdde0301001801000000950000000006eb3231661db141ca39006df985fd515418cbded0c7ad7dab56e2af72b51b0252f5b075000611313a277cc001000000600000000000000000000000000000000000000000000000000000000000000020000000000000000000000000000000000000000000000000000000000000000d5772617070656420457468657200000000000000000000000000000000000000"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}

	return b
}
