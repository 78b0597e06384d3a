// Package scan turns Nmap output into service values for the challenge store.
// Both the XML (-oX) and greppable (-oG) formats are understood; only open
// ports are returned and entries that cannot be parsed are dropped.
package scan

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"htbnerd/internal/logging"
	"htbnerd/internal/types"
)

// Format identifies an Nmap output format.
type Format string

const (
	FormatXML      Format = "xml"
	FormatGrepable Format = "gnmap"
)

// Result is the outcome of parsing one scan file.
type Result struct {
	Format   Format
	Services []types.Service
	Dropped  int // malformed or non-open entries
}

// ParseFile reads and parses an Nmap output file.
func ParseFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read scan file: %w", err)
	}
	res, err := Parse(data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	logging.Scan("parsed %s (%s): %d open services, %d dropped", path, res.Format, len(res.Services), res.Dropped)
	return res, nil
}

// Parse detects the format of data and parses it.
func Parse(data []byte) (Result, error) {
	switch Detect(data) {
	case FormatXML:
		return parseXML(data)
	default:
		return parseGrepable(data)
	}
}

// Detect reports the format of data. Anything that does not look like XML
// is treated as greppable output.
func Detect(data []byte) Format {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		return FormatXML
	}
	return FormatGrepable
}

// =============================================================================
// XML (-oX)
// =============================================================================

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Hostnames []nmapName    `xml:"hostnames>hostname"`
	Ports     []nmapPort    `xml:"ports>port"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapName struct {
	Name string `xml:"name,attr"`
}

type nmapPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   string `xml:"portid,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name      string `xml:"name,attr"`
		Product   string `xml:"product,attr"`
		Version   string `xml:"version,attr"`
		ExtraInfo string `xml:"extrainfo,attr"`
		Tunnel    string `xml:"tunnel,attr"`
	} `xml:"service"`
}

// host picks the IP address of a host, falling back to its first hostname.
func (h nmapHost) host() string {
	for _, a := range h.Addresses {
		if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	for _, n := range h.Hostnames {
		if n.Name != "" {
			return n.Name
		}
	}
	return ""
}

func parseXML(data []byte) (Result, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return Result{}, fmt.Errorf("failed to parse nmap xml: %w", err)
	}
	res := Result{Format: FormatXML}
	for _, h := range run.Hosts {
		host := h.host()
		for _, p := range h.Ports {
			if p.State.State != string(types.StateOpen) {
				res.Dropped++
				continue
			}
			name := p.Service.Name
			if p.Service.Tunnel == "ssl" && name != "" && !strings.HasPrefix(name, "ssl/") {
				name = "ssl/" + name
			}
			version := joinNonEmpty(p.Service.Product, p.Service.Version, p.Service.ExtraInfo)
			svc, ok := build(host, p.PortID, p.Protocol, name, version)
			if !ok {
				res.Dropped++
				continue
			}
			res.Services = append(res.Services, svc)
		}
	}
	return res, nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// =============================================================================
// GREPPABLE (-oG)
// =============================================================================

// Host: 10.10.10.3 (lame.htb)	Ports: 21/open/tcp//ftp//vsftpd 2.3.4/, 22/open/tcp//ssh//OpenSSH 4.7p1/
var hostLine = regexp.MustCompile(`^Host:\s+(\S+)\s+\(([^)]*)\)`)

func parseGrepable(data []byte) (Result, error) {
	res := Result{Format: FormatGrepable}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		m := hostLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		host := m[1]
		for _, field := range strings.Split(line, "\t") {
			ports, ok := strings.CutPrefix(strings.TrimSpace(field), "Ports:")
			if !ok {
				continue
			}
			for _, entry := range strings.Split(ports, ",") {
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}
				// port/state/protocol/owner/service/rpc_info/version/
				parts := strings.Split(entry, "/")
				if len(parts) < 5 || parts[1] != string(types.StateOpen) {
					res.Dropped++
					continue
				}
				version := ""
				if len(parts) >= 7 {
					version = parts[6]
				}
				svc, ok := build(host, parts[0], parts[2], parts[4], version)
				if !ok {
					res.Dropped++
					continue
				}
				res.Services = append(res.Services, svc)
			}
		}
	}
	if len(res.Services) == 0 && res.Dropped == 0 && !bytes.Contains(data, []byte("Host:")) {
		return Result{}, fmt.Errorf("no nmap host entries found")
	}
	return res, nil
}

func build(host, port, proto, name, version string) (types.Service, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		logging.ScanDebug("dropping entry with bad port %q", port)
		return types.Service{}, false
	}
	p, err := types.ParseProtocol(proto)
	if err != nil {
		logging.ScanDebug("dropping %s: %v", port, err)
		return types.Service{}, false
	}
	svc, err := types.NewService(host, n, p, name, version, types.StateOpen)
	if err != nil {
		logging.ScanDebug("dropping %s/%s: %v", port, proto, err)
		return types.Service{}, false
	}
	return svc, true
}
