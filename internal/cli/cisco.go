// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"fmt"
	"strings"

	"routertrap/internal/logging"
)

type ciscoMode int

const (
	ciscoUserExec ciscoMode = iota
	ciscoPrivilegedExec
	ciscoGlobalConfig
	ciscoInterfaceConfig
	ciscoRouterConfig
	ciscoLineConfig
)

type ciscoInterface struct {
	name        string
	ipAddress   string
	subnetMask  string
	status      string
	description string
}

// CiscoIOS emulates a Cisco IOS device's EXEC and configuration shells.
type CiscoIOS struct {
	hostname      string
	mode          ciscoMode
	interfaces    map[string]*ciscoInterface
	authenticated bool
	username      string
}

// NewCiscoIOS builds a Cisco IOS shell with a fixed pair of default
// interfaces, matching a freshly-imaged switch's running-config.
func NewCiscoIOS(hostname string) *CiscoIOS {
	return &CiscoIOS{
		hostname: hostname,
		mode:     ciscoUserExec,
		interfaces: map[string]*ciscoInterface{
			"GigabitEthernet0/0": {
				name: "GigabitEthernet0/0", ipAddress: "192.168.1.1", subnetMask: "255.255.255.0", status: "up",
			},
			"GigabitEthernet0/1": {
				name: "GigabitEthernet0/1", status: "administratively down",
			},
		},
	}
}

func (c *CiscoIOS) Authenticate(username, _ string) bool {
	logging.Info("cisco: login attempt", "username", username)
	c.authenticated = true
	c.username = username
	return true
}

func (c *CiscoIOS) HandleCommand(command string) string {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return ""
	}
	logging.Debug("cisco: command", "cmd", cmd, "mode", c.mode)

	switch c.mode {
	case ciscoUserExec:
		switch {
		case cmd == "enable" || cmd == "en":
			c.mode = ciscoPrivilegedExec
			return ""
		case strings.HasPrefix(cmd, "show "):
			return c.handleShow(cmd[5:])
		case cmd == "exit" || cmd == "quit":
			return "Logout\n"
		case cmd == "?":
			return c.help()
		default:
			return "% Invalid input detected at '^' marker.\n"
		}

	case ciscoPrivilegedExec:
		switch {
		case cmd == "configure terminal" || cmd == "conf t":
			c.mode = ciscoGlobalConfig
			return "Enter configuration commands, one per line.  End with CNTL/Z.\n"
		case cmd == "disable":
			c.mode = ciscoUserExec
			return ""
		case strings.HasPrefix(cmd, "show "):
			return c.handleShow(cmd[5:])
		case cmd == "reload":
			return "System configuration has been modified. Save? [yes/no]: "
		case cmd == "write memory" || cmd == "wr":
			return "Building configuration...\n[OK]\n"
		case cmd == "exit" || cmd == "quit":
			return "Logout\n"
		case cmd == "?":
			return c.help()
		default:
			return "% Invalid input detected at '^' marker.\n"
		}

	case ciscoGlobalConfig:
		switch {
		case cmd == "exit" || cmd == "end":
			c.mode = ciscoPrivilegedExec
			return ""
		case strings.HasPrefix(cmd, "interface "):
			c.mode = ciscoInterfaceConfig
			return ""
		case strings.HasPrefix(cmd, "router bgp"):
			c.mode = ciscoRouterConfig
			return ""
		case strings.HasPrefix(cmd, "line "):
			c.mode = ciscoLineConfig
			return ""
		case strings.HasPrefix(cmd, "hostname "):
			parts := strings.Fields(cmd)
			if len(parts) >= 2 {
				c.hostname = parts[1]
			}
			return ""
		case cmd == "?":
			return c.configHelp()
		default:
			return ""
		}

	default: // interface/router/line config
		switch cmd {
		case "exit":
			c.mode = ciscoGlobalConfig
		case "end":
			c.mode = ciscoPrivilegedExec
		}
		return ""
	}
}

func (c *CiscoIOS) Prompt() string {
	switch c.mode {
	case ciscoUserExec:
		return c.hostname + ">"
	case ciscoPrivilegedExec:
		return c.hostname + "#"
	case ciscoGlobalConfig:
		return c.hostname + "(config)#"
	case ciscoInterfaceConfig:
		return c.hostname + "(config-if)#"
	case ciscoRouterConfig:
		return c.hostname + "(config-router)#"
	case ciscoLineConfig:
		return c.hostname + "(config-line)#"
	default:
		return c.hostname + ">"
	}
}

func (c *CiscoIOS) Banner() string {
	return "\n" +
		"**************************************************************************\n" +
		"* IOSv is strictly limited to use for evaluation, demonstration and IOS  *\n" +
		"* education. IOSv is provided as-is and is not supported by Cisco's      *\n" +
		"* Technical Advisory Center. Any use or disclosure, in whole or in part, *\n" +
		"* of the IOSv Software or Documentation to any third party for any       *\n" +
		"* purposes is expressly prohibited except as otherwise authorized by     *\n" +
		"* Cisco in writing.                                                      *\n" +
		"**************************************************************************\n" +
		"\n" +
		"User Access Verification\n\n"
}

func (c *CiscoIOS) handleShow(args string) string {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "% Invalid input detected at '^' marker.\n"
	}

	switch parts[0] {
	case "version":
		return c.showVersion()
	case "running-config", "run":
		return c.showRunningConfig()
	case "ip":
		if len(parts) < 2 {
			return "% Incomplete command.\n"
		}
		switch parts[1] {
		case "interface":
			return c.showIPInterface(argAt(parts, 2))
		case "route":
			return c.showIPRoute()
		case "bgp":
			return c.showIPBGP()
		default:
			return "% Incomplete command.\n"
		}
	case "interface", "interfaces":
		return c.showInterfaces(argAt(parts, 1))
	case "users":
		return c.showUsers()
	case "processes":
		return c.showProcesses()
	case "memory":
		return c.showMemory()
	case "cdp":
		if len(parts) > 1 && parts[1] == "neighbors" {
			return c.showCDPNeighbors()
		}
		return c.showCDP()
	case "arp":
		return c.showARP()
	case "mac-address-table", "mac":
		return c.showMACTable()
	case "vlan":
		return c.showVLAN()
	default:
		return "% Invalid input detected at '^' marker.\n"
	}
}

func argAt(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func (c *CiscoIOS) showVersion() string {
	return fmt.Sprintf(
		"Cisco IOS Software, C3750 Software (C3750-IPSERVICESK9-M), Version 15.2(4)E8, RELEASE SOFTWARE (fc3)\n"+
			"Technical Support: http://www.cisco.com/techsupport\n"+
			"Copyright (c) 1986-2023 by Cisco Systems, Inc.\n"+
			"Compiled Fri 15-Sep-23 12:00 by prod_rel_team\n\n"+
			"ROM: Bootstrap program is C3750 boot loader\n\n"+
			"%s uptime is 42 weeks, 3 days, 12 hours, 34 minutes\n"+
			"System returned to ROM by power-on\n"+
			"System image file is \"flash:c3750-ipservicesk9-mz.152-4.E8.bin\"\n\n"+
			"cisco WS-C3750G-24TS (PowerPC405) processor (revision C0) with 131072K bytes of memory.\n"+
			"Processor board ID FOC1234X567\n"+
			"24 Gigabit Ethernet interfaces\n"+
			"Configuration register is 0x10F\n\n", c.hostname)
}

func (c *CiscoIOS) showRunningConfig() string {
	return fmt.Sprintf(
		"Building configuration...\n\n"+
			"Current configuration : 4532 bytes\n!\n"+
			"version 15.2\n"+
			"service timestamps debug datetime msec\n"+
			"no service password-encryption\n!\n"+
			"hostname %s\n!\n"+
			"enable secret 5 $1$mERr$hx5rVt7rPNoS4wqbXKX7m0\n!\n"+
			"ip routing\n!\n"+
			"interface GigabitEthernet0/0\n"+
			" ip address 192.168.1.1 255.255.255.0\n!\n"+
			"interface GigabitEthernet0/1\n shutdown\n!\n"+
			"router bgp 65001\n"+
			" bgp log-neighbor-changes\n"+
			" network 192.168.1.0 mask 255.255.255.0\n!\n"+
			"ip classless\nip route 0.0.0.0 0.0.0.0 192.168.1.254\n!\n"+
			"snmp-server community public RO\n"+
			"snmp-server community private RW\n!\n"+
			"line con 0\nline vty 0 4\n login\n transport input ssh\n!\n"+
			"end\n\n", c.hostname)
}

func (c *CiscoIOS) showInterfaces(name string) string {
	if name != "" {
		iface, ok := c.interfaces[name]
		if !ok {
			return "                      ^\n% Invalid input detected at '^' marker.\n"
		}
		desc := ""
		if iface.description != "" {
			desc = "  Description: " + iface.description + "\n"
		}
		return fmt.Sprintf(
			"%s is %s, line protocol is up\n"+
				"Hardware is Gigabit Ethernet, address is 001a.2b3c.4d5e (bia 001a.2b3c.4d5e)\n%s"+
				"MTU 1500 bytes, BW 1000000 Kbit/sec, DLY 10 usec,\n"+
				"   reliability 255/255, txload 1/255, rxload 1/255\n"+
				"Encapsulation ARPA, loopback not set\n"+
				"Full-duplex, 1000Mb/s, media type is 10/100/1000BaseTX\n"+
				"   123456 packets input, 12345678 bytes, 0 no buffer\n"+
				"   234567 packets output, 23456789 bytes, 0 underruns\n",
			iface.name, iface.status, desc)
	}

	var b strings.Builder
	for _, iface := range c.interfaces {
		proto := "down"
		if iface.status == "up" {
			proto = "up"
		}
		fmt.Fprintf(&b, "%s is %s, line protocol is %s\n", iface.name, iface.status, proto)
	}
	return b.String()
}

func (c *CiscoIOS) showIPInterface(name string) string {
	if name != "" {
		iface, ok := c.interfaces[name]
		if !ok {
			return "% Invalid interface\n"
		}
		addr := iface.ipAddress
		if addr == "" {
			addr = "unassigned"
		}
		return fmt.Sprintf(
			"%s is %s, line protocol is up\n"+
				"Internet address is %s/%s\n"+
				"Broadcast address is 255.255.255.255\n"+
				"MTU is 1500 bytes\n"+
				"Proxy ARP is enabled\n"+
				"IP fast switching is enabled\n",
			iface.name, iface.status, addr, iface.subnetMask)
	}
	var b strings.Builder
	for _, iface := range c.interfaces {
		proto := "down"
		if iface.status == "up" {
			proto = "up"
		}
		addr := iface.ipAddress
		if addr == "" {
			addr = "unassigned"
		}
		fmt.Fprintf(&b, "%s is %s, line protocol is %s\n  Internet address is %s/%s\n",
			iface.name, iface.status, proto, addr, iface.subnetMask)
	}
	return b.String()
}

func (c *CiscoIOS) showIPRoute() string {
	return "Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP\n" +
		"Gateway of last resort is 192.168.1.254 to network 0.0.0.0\n\n" +
		"S*    0.0.0.0/0 [1/0] via 192.168.1.254\n" +
		"C     192.168.1.0/24 is directly connected, GigabitEthernet0/0\n" +
		"L     192.168.1.1/32 is directly connected, GigabitEthernet0/0\n"
}

func (c *CiscoIOS) showIPBGP() string {
	return "BGP table version is 1, local router ID is 192.168.1.1\n" +
		"Status codes: s suppressed, d damped, h history, * valid, > best, i - internal\n" +
		"Origin codes: i - IGP, e - EGP, ? - incomplete\n\n" +
		"   Network          Next Hop            Metric LocPrf Weight Path\n" +
		"*> 192.168.1.0/24   0.0.0.0                  0         32768 i\n"
}

func (c *CiscoIOS) showUsers() string {
	user := c.username
	if user == "" {
		user = "admin"
	}
	return fmt.Sprintf(
		"    Line       User       Host(s)              Idle       Location\n"+
			"*  0 con 0     %s      idle                 00:00:00\n\n"+
			"  Interface    User               Mode         Idle     Peer Address\n", user)
}

func (c *CiscoIOS) showProcesses() string {
	return "CPU utilization for five seconds: 5%/2%; one minute: 4%; five minutes: 3%\n" +
		"PID Runtime(ms)     Invoked      uSecs   5Sec   1Min   5Min TTY Process\n" +
		"  1          12        1234         10  0.00%  0.00%  0.00%   0 Chunk Manager\n" +
		"  2         456       23456         20  0.01%  0.00%  0.00%   0 Load Meter\n"
}

func (c *CiscoIOS) showMemory() string {
	return "                Head    Total(b)     Used(b)     Free(b)   Lowest(b)  Largest(b)\n" +
		"Processor    6F4A5C    134217728    45678900    88538828    87654320    85432100\n"
}

func (c *CiscoIOS) showCDPNeighbors() string {
	return "Capability Codes: R - Router, T - Trans Bridge, B - Source Route Bridge\n" +
		"                   S - Switch, H - Host, I - IGMP, r - Repeater, P - Phone\n\n" +
		"Device ID        Local Intrfce     Holdtme    Capability  Platform  Port ID\n" +
		"Switch-Core      Gig 0/1           165          S I      WS-C3750  Gig 1/0/1\n"
}

func (c *CiscoIOS) showCDP() string {
	return "Global CDP information:\n" +
		"    Sending CDP packets every 60 seconds\n" +
		"    Sending a holdtime value of 180 seconds\n"
}

func (c *CiscoIOS) showARP() string {
	return "Protocol  Address          Age (min)  Hardware Addr   Type   Interface\n" +
		"Internet  192.168.1.1             -   001a.2b3c.4d5e  ARPA   GigabitEthernet0/0\n" +
		"Internet  192.168.1.254          42   00aa.bb11.cc22  ARPA   GigabitEthernet0/0\n"
}

func (c *CiscoIOS) showMACTable() string {
	return "          Mac Address Table\n" +
		"-------------------------------------------\n\n" +
		"Vlan    Mac Address       Type        Ports\n" +
		"----    -----------       --------    -----\n" +
		"   1    001a.2b3c.4d5e    DYNAMIC     Gi0/0\n" +
		"Total Mac Addresses for this criterion: 1\n"
}

func (c *CiscoIOS) showVLAN() string {
	return "VLAN Name                             Status    Ports\n" +
		"---- -------------------------------- --------- -------------------------------\n" +
		"1    default                          active    Gi0/0, Gi0/1\n"
}

func (c *CiscoIOS) help() string {
	switch c.mode {
	case ciscoUserExec:
		return "Exec commands:\n" +
			"  enable      Turn on privileged commands\n" +
			"  exit        Exit from the EXEC\n" +
			"  show        Show running system information\n"
	case ciscoPrivilegedExec:
		return "Exec commands:\n" +
			"  configure   Enter configuration mode\n" +
			"  disable     Turn off privileged commands\n" +
			"  reload      Halt and perform a cold restart\n" +
			"  show        Show running system information\n" +
			"  write       Write running configuration to memory or terminal\n"
	default:
		return ""
	}
}

func (c *CiscoIOS) configHelp() string {
	return "Configure commands:\n" +
		"  hostname       Set system's network name\n" +
		"  interface      Select an interface to configure\n" +
		"  ip             Global IP configuration subcommands\n" +
		"  router         Enable a routing process\n" +
		"  snmp-server    Modify SNMP engine parameters\n"
}
