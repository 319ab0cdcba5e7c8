// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSelectsVendor(t *testing.T) {
	require.IsType(t, &CiscoIOS{}, New("cisco", "edge-rtr01"))
	require.IsType(t, &JuniperJunos{}, New("junos", "edge-rtr01"))
	require.IsType(t, &CiscoIOS{}, New("unknown", "edge-rtr01"))
}

func TestCiscoAcceptsAnyCredentials(t *testing.T) {
	c := NewCiscoIOS("edge-rtr01")
	require.True(t, c.Authenticate("root", "hunter2"))
}

func TestCiscoModeTransitions(t *testing.T) {
	c := NewCiscoIOS("edge-rtr01")
	require.Equal(t, "edge-rtr01>", c.Prompt())

	c.HandleCommand("enable")
	require.Equal(t, "edge-rtr01#", c.Prompt())

	c.HandleCommand("configure terminal")
	require.Equal(t, "edge-rtr01(config)#", c.Prompt())

	c.HandleCommand("end")
	require.Equal(t, "edge-rtr01#", c.Prompt())
}

func TestCiscoSubConfigModes(t *testing.T) {
	c := NewCiscoIOS("edge-rtr01")
	c.HandleCommand("en")
	c.HandleCommand("conf t")

	c.HandleCommand("interface GigabitEthernet0/0")
	require.Equal(t, "edge-rtr01(config-if)#", c.Prompt())
	c.HandleCommand("exit")
	require.Equal(t, "edge-rtr01(config)#", c.Prompt())

	c.HandleCommand("router bgp 65001")
	require.Equal(t, "edge-rtr01(config-router)#", c.Prompt())
	c.HandleCommand("exit")

	c.HandleCommand("line vty 0 4")
	require.Equal(t, "edge-rtr01(config-line)#", c.Prompt())
	c.HandleCommand("end")
	require.Equal(t, "edge-rtr01#", c.Prompt())
}

func TestCiscoUnknownCommandInExecMode(t *testing.T) {
	c := NewCiscoIOS("edge-rtr01")
	out := c.HandleCommand("frobnicate")
	require.Contains(t, out, "% Invalid input detected at '^' marker.")
}

func TestCiscoShowVersionMentionsHostname(t *testing.T) {
	c := NewCiscoIOS("edge-rtr01")
	out := c.HandleCommand("show version")
	require.Contains(t, out, "edge-rtr01 uptime")
}

func TestJunosModeTransitions(t *testing.T) {
	j := NewJuniperJunos("edge-rtr01")
	require.True(t, strings.HasPrefix(j.Prompt(), "admin@edge-rtr01>"))

	j.HandleCommand("configure")
	require.True(t, strings.HasPrefix(j.Prompt(), "admin@edge-rtr01#"))

	j.HandleCommand("edit interfaces")
	require.Contains(t, j.Prompt(), "admin@edge-rtr01#")

	out := j.HandleCommand("exit")
	require.Contains(t, out, "[edit]")
}

func TestJunosShowVersion(t *testing.T) {
	j := NewJuniperJunos("edge-rtr01")
	out := j.HandleCommand("show version")
	require.Contains(t, out, "edge-rtr01")
}
