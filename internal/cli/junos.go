// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"fmt"
	"strings"

	"routertrap/internal/logging"
)

type junosMode int

const (
	junosOperational junosMode = iota
	junosConfiguration
)

// JuniperJunos emulates a Junos operational and configuration shell.
type JuniperJunos struct {
	hostname   string
	mode       junosMode
	configPath []string
	username   string
}

// NewJuniperJunos builds a Junos shell.
func NewJuniperJunos(hostname string) *JuniperJunos {
	return &JuniperJunos{hostname: hostname, mode: junosOperational}
}

func (j *JuniperJunos) Authenticate(username, _ string) bool {
	logging.Info("junos: login attempt", "username", username)
	j.username = username
	return true
}

func (j *JuniperJunos) HandleCommand(command string) string {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return ""
	}
	logging.Debug("junos: command", "cmd", cmd, "mode", j.mode)

	switch j.mode {
	case junosOperational:
		switch {
		case cmd == "configure" || cmd == "edit":
			j.mode = junosConfiguration
			return "Entering configuration mode\n\n[edit]\n"
		case strings.HasPrefix(cmd, "show "):
			return j.handleShow(cmd[5:])
		case cmd == "exit" || cmd == "quit":
			return "\n"
		case strings.HasPrefix(cmd, "ping "):
			return "PING 8.8.8.8 (8.8.8.8): 56 data bytes\n" +
				"64 bytes from 8.8.8.8: icmp_seq=0 ttl=57 time=10.123 ms\n\n" +
				"--- 8.8.8.8 ping statistics ---\n" +
				"2 packets transmitted, 2 packets received, 0% packet loss\n"
		case strings.HasPrefix(cmd, "traceroute "):
			return "traceroute to 8.8.8.8 (8.8.8.8), 30 hops max, 40 byte packets\n" +
				" 1  192.168.1.254 (192.168.1.254)  1.234 ms  1.123 ms  1.056 ms\n" +
				" 2  8.8.8.8 (8.8.8.8)  10.123 ms  10.234 ms  10.345 ms\n"
		case cmd == "?" || cmd == "help":
			return j.help()
		default:
			return "                     ^\nsyntax error.\n"
		}

	default: // junosConfiguration
		switch {
		case cmd == "exit" || cmd == "quit":
			if len(j.configPath) == 0 {
				j.mode = junosOperational
				return "Exiting configuration mode\n\n"
			}
			j.configPath = j.configPath[:len(j.configPath)-1]
			return fmt.Sprintf("\n[edit%s]\n", j.configPathString())
		case cmd == "top":
			j.configPath = nil
			return "\n[edit]\n"
		case strings.HasPrefix(cmd, "edit "):
			j.configPath = append(j.configPath, strings.TrimSpace(cmd[5:]))
			return fmt.Sprintf("\n[edit%s]\n", j.configPathString())
		case cmd == "show" || cmd == "show configuration":
			return j.showConfiguration()
		case strings.HasPrefix(cmd, "set "), strings.HasPrefix(cmd, "delete "):
			return ""
		case cmd == "commit":
			return "commit complete\n"
		case cmd == "commit check":
			return "configuration check succeeds\n"
		case cmd == "rollback":
			return "load complete\n"
		case cmd == "?" || cmd == "help":
			return j.configHelp()
		default:
			return ""
		}
	}
}

func (j *JuniperJunos) Prompt() string {
	user := j.username
	if user == "" {
		user = "admin"
	}
	sep := ">"
	if j.mode == junosConfiguration {
		sep = "#"
	}
	return fmt.Sprintf("%s@%s%s ", user, j.hostname, sep)
}

func (j *JuniperJunos) Banner() string {
	return "\n--- JUNOS 20.4R3.8 built 2021-02-25 18:35:56 UTC\n\n"
}

func (j *JuniperJunos) configPathString() string {
	if len(j.configPath) == 0 {
		return ""
	}
	return " " + strings.Join(j.configPath, " ")
}

func (j *JuniperJunos) handleShow(args string) string {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "                     ^\nsyntax error.\n"
	}

	switch parts[0] {
	case "version":
		return j.showVersion()
	case "configuration":
		return j.showConfiguration()
	case "interfaces":
		return j.showInterfaces(argAt(parts, 1))
	case "route":
		return j.showRoute(argAt(parts, 1))
	case "bgp":
		return j.showBGP(argAt(parts, 1))
	case "chassis":
		return j.showChassis(argAt(parts, 1))
	case "system":
		return j.showSystem(argAt(parts, 1))
	case "arp":
		return j.showARP()
	case "ethernet-switching":
		return j.showEthernetSwitching()
	case "log":
		return j.showLog()
	case "security":
		return j.showSecurity(argAt(parts, 1))
	default:
		return "                     ^\nsyntax error.\n"
	}
}

func (j *JuniperJunos) showVersion() string {
	return fmt.Sprintf("Hostname: %s\nModel: srx300\nJunos: 20.4R3.8\n"+
		"JUNOS Software Release [20.4R3.8]\n\n", j.hostname)
}

func (j *JuniperJunos) showConfiguration() string {
	user := j.username
	if user == "" {
		user = "admin"
	}
	return fmt.Sprintf("## Last commit: 2024-01-15 10:30:00 UTC by %s\n"+
		"version 20.4R3.8;\n"+
		"system {\n    host-name %s;\n    time-zone America/New_York;\n}\n"+
		"interfaces {\n    ge-0/0/0 {\n        unit 0 {\n            family inet {\n                address 192.168.1.1/24;\n            }\n        }\n    }\n}\n"+
		"routing-options {\n    autonomous-system 65001;\n}\n"+
		"protocols {\n    bgp {\n        group ebgp {\n            type external;\n            neighbor 192.168.1.254 {\n                peer-as 65000;\n            }\n        }\n    }\n}\n\n",
		user, j.hostname)
}

func (j *JuniperJunos) showInterfaces(detail string) string {
	if detail == "terse" {
		return "Interface               Admin Link Proto    Local                 Remote\n" +
			"ge-0/0/0                up    up\n" +
			"ge-0/0/0.0              up    up   inet     192.168.1.1/24\n" +
			"ge-0/0/1                up    down\n"
	}
	return "Physical interface: ge-0/0/0, Enabled, Physical link is Up\n" +
		"  Link-level type: Ethernet, MTU: 1514, Speed: 1000mbps\n" +
		"  Current address: 00:05:86:71:1a:c0\n\n" +
		"Physical interface: ge-0/0/1, Enabled, Physical link is Down\n" +
		"  Link-level type: Ethernet, MTU: 1514, Speed: 1000mbps\n"
}

func (j *JuniperJunos) showRoute(detail string) string {
	if detail == "summary" {
		return "Autonomous system number: 65001\nRouter ID: 192.168.1.1\n\n" +
			"inet.0: 3 destinations, 3 routes (3 active, 0 holddown, 0 hidden)\n"
	}
	return "inet.0: 3 destinations, 3 routes (3 active, 0 holddown, 0 hidden)\n" +
		"+ = Active Route, - = Last Active, * = Both\n\n" +
		"0.0.0.0/0          *[Static/5] 42w3d 12:34:56\n" +
		"                    >  to 192.168.1.254 via ge-0/0/0.0\n"
}

func (j *JuniperJunos) showBGP(sub string) string {
	switch sub {
	case "summary":
		return "Groups: 1 Peers: 1 Down peers: 0\n" +
			"Peer                     AS      InPkt     OutPkt    OutQ   Flaps Last Up/Dwn State\n" +
			"192.168.1.254         65000        123        456       0       0     42:34:56 Establ\n"
	case "neighbor":
		return "Peer: 192.168.1.254+179 AS 65000 Local: 192.168.1.1+52341 AS 65001\n" +
			"  Type: External    State: Established\n" +
			"  Holdtime: 90 Preference: 170\n"
	default:
		return "Groups: 1 Peers: 1 Down peers: 0\n" +
			"192.168.1.254         65000        123        456       0       0     42:34:56 Establ\n"
	}
}

func (j *JuniperJunos) showChassis(sub string) string {
	switch sub {
	case "hardware":
		return "Hardware inventory:\n" +
			"Item             Version  Part number  Serial number     Description\n" +
			"Chassis                                JN123456789ABC    SRX300\n"
	case "alarms":
		return "No alarms currently active\n"
	case "environment":
		return "Class Item                           Status     Measurement\n" +
			"Temp  CPU Die Temp                    OK         40 degrees C / 104 degrees F\n"
	default:
		return "                     ^\nsyntax error, expecting <command>.\n"
	}
}

func (j *JuniperJunos) showSystem(sub string) string {
	switch sub {
	case "uptime":
		return "Current time: 2024-01-15 15:30:00 UTC\n" +
			"System booted: 2023-03-01 10:00:00 UTC (42w3d 05:30 ago)\n"
	case "users":
		user := j.username
		if user == "" {
			user = "admin"
		}
		return fmt.Sprintf(" 5:30PM  up 297 days,  5:30, 1 user, load averages: 0.12, 0.15, 0.18\n"+
			"USER     TTY      FROM                              LOGIN@  IDLE WHAT\n"+
			"%s      pts/0    192.168.1.100                     3:30PM     0 cli\n", user)
	case "processes":
		return "last pid:  9876;  load averages:  0.12,  0.15,  0.18  up 297+05:30:00    17:30:00\n" +
			"128 processes: 2 running, 126 sleeping\n"
	case "storage":
		return "Filesystem              Size       Used      Avail  Capacity   Mounted on\n" +
			"/dev/ada0s1a            2.0G       890M       980M        48%  /\n"
	default:
		return "                     ^\nsyntax error, expecting <command>.\n"
	}
}

func (j *JuniperJunos) showARP() string {
	return "MAC Address       Address         Name                      Interface           Flags\n" +
		"00:05:86:71:1a:c0 192.168.1.1     192.168.1.1               ge-0/0/0.0          none\n" +
		"Total entries: 1\n"
}

func (j *JuniperJunos) showEthernetSwitching() string {
	return "Ethernet-switching table: 1 entries\n\n" +
		"  VLAN              MAC address       Type         Age Interfaces\n" +
		"  default           00:05:86:71:1a:c0 Learn          0 ge-0/0/0.0\n"
}

func (j *JuniperJunos) showLog() string {
	return "Jan 15 15:29:45 router mgd[1234]: UI_CMDLINE_READ_LINE: User 'admin', command 'show log messages '\n" +
		"Jan 15 15:25:12 router mgd[1234]: UI_COMMIT_COMPLETED: commit complete\n"
}

func (j *JuniperJunos) showSecurity(sub string) string {
	switch sub {
	case "zones":
		return "Security zone: trust\n  Interfaces bound: 1\n    ge-0/0/0.0\n\n" +
			"Security zone: untrust\n  Interfaces bound: 1\n    ge-0/0/1.0\n"
	case "policies":
		return "From zone: trust, To zone: untrust\n" +
			"  Policy: trust-to-untrust, State: enabled\n    Action: permit\n"
	case "flow":
		return "Session ID: 12345, Policy name: trust-to-untrust/4, Timeout: 1800, Valid\n" +
			"Total sessions: 1\n"
	default:
		return "                     ^\nsyntax error, expecting <command>.\n"
	}
}

func (j *JuniperJunos) help() string {
	return "Main mode commands:\n" +
		"  configure            Manipulate software configuration information\n" +
		"  help                 Provide help information\n" +
		"  ping                 Ping remote target\n" +
		"  quit                 Exit the management session\n" +
		"  show                 Show information about the system\n" +
		"  traceroute           Trace route to remote host\n"
}

func (j *JuniperJunos) configHelp() string {
	return "Configuration mode commands:\n" +
		"  commit               Commit current set of changes\n" +
		"  edit                 Edit a sub-element\n" +
		"  exit                 Exit from this level\n" +
		"  rollback             Roll back database to last committed version\n" +
		"  set                  Set a parameter\n" +
		"  show                 Show a parameter\n" +
		"  top                  Exit to top level of configuration\n"
}
