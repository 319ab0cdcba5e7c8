// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ssdp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMSearchResponseFansOutMultipleRecords(t *testing.T) {
	resp := buildMSearchResponse("urn:schemas-upnp-org:device:InternetGatewayDevice:1")
	require.Equal(t, 7, strings.Count(resp, "HTTP/1.1 200 OK"))
	require.Contains(t, resp, "upnp:rootdevice")
	require.Contains(t, resp, "InternetGatewayDevice:1")
	require.Contains(t, resp, "WANIPConnection:1")
}

func TestBuildMSearchResponseAdvertisesConfiguredDevice(t *testing.T) {
	resp := buildMSearchResponse("urn:schemas-upnp-org:device:MediaServer:1")
	require.Contains(t, resp, "MediaServer:1")
}
