// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsGetBulkDetectsTag(t *testing.T) {
	require.True(t, containsGetBulk([]byte{0x30, 0x10, 0xA5, 0x00}))
	require.False(t, containsGetBulk([]byte{0x30, 0x10, 0xA2, 0x00}))
}

func TestBuildBulkResponseMuchLargerThanSimple(t *testing.T) {
	simple := buildSimpleResponse("public")
	bulk := buildBulkResponse("public")
	require.Greater(t, len(bulk), len(simple)*5)
}

func TestBuildBulkResponseUsesLongFormLength(t *testing.T) {
	bulk := buildBulkResponse("public")
	// Outer SEQUENCE exceeds 127 bytes, so its length must be long-form.
	require.Equal(t, byte(0x30), bulk[0])
	require.Equal(t, byte(0x82), bulk[1])
	total := int(bulk[2])<<8 | int(bulk[3])
	require.Equal(t, len(bulk)-4, total)
	require.Contains(t, string(bulk), "public")
}

func TestBuildSimpleResponseUsesShortFormLength(t *testing.T) {
	simple := buildSimpleResponse("public")
	require.Equal(t, byte(0x30), simple[0])
	require.Less(t, simple[1], byte(0x80))
	require.Equal(t, len(simple)-2, int(simple[1]))
}

func TestEncodeOIDFirstByte(t *testing.T) {
	// 1.3 encodes as 40*1+3 = 43 = 0x2b
	require.Equal(t, []byte{0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x01, 0x00}, encodeOID("1.3.6.1.2.1.1.1.0"))
}
