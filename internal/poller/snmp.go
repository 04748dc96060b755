package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/HerbHall/linkstat/pkg/models"
)

const (
	oidSysUpTime    = ".1.3.6.1.2.1.1.3.0"
	oidIfName       = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfLastChange = ".1.3.6.1.2.1.2.2.1.9"

	defaultSNMPPort = 161
)

// SNMPConfig configures the RouterOS SNMP adapter.
type SNMPConfig struct {
	Retries int           `mapstructure:"retries"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RouterOSSNMP derives sessions from the dynamic <pppoe-LOGIN> interfaces a
// RouterOS access server creates for each PPP client. The device password is
// used as the SNMPv2c community. SNMP exposes no caller ID or byte limits.
type RouterOSSNMP struct {
	retries int
	timeout time.Duration
}

// NewRouterOSSNMP creates the adapter.
func NewRouterOSSNMP(cfg SNMPConfig) *RouterOSSNMP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RouterOSSNMP{retries: cfg.Retries, timeout: timeout}
}

func (a *RouterOSSNMP) ActiveSessions(ctx context.Context, device models.Device) ([]models.Session, error) {
	port := device.Port
	if port == 0 {
		port = defaultSNMPPort
	}
	client := &gosnmp.GoSNMP{
		Target:         device.Address,
		Port:           uint16(port), //nolint:gosec // ports are validated on registration
		Community:      device.Password,
		Version:        gosnmp.Version2c,
		Timeout:        a.timeout,
		Retries:        a.retries,
		MaxRepetitions: 50,
		Context:        ctx,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", device.Address, err)
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysUpTime})
	if err != nil {
		return nil, fmt.Errorf("snmp get sysUpTime: %w", err)
	}
	if result.Error != gosnmp.NoError || len(result.Variables) == 0 {
		return nil, fmt.Errorf("%w: sysUpTime: %s", ErrProtocol, result.Error)
	}
	sysUp := result.Variables[0]
	if sysUp.Type != gosnmp.TimeTicks {
		return nil, fmt.Errorf("%w: sysUpTime has type %s", ErrProtocol, sysUp.Type)
	}

	names, err := client.BulkWalkAll(oidIfName)
	if err != nil {
		return nil, fmt.Errorf("snmp walk ifName: %w", err)
	}
	changes, err := client.BulkWalkAll(oidIfLastChange)
	if err != nil {
		return nil, fmt.Errorf("snmp walk ifLastChange: %w", err)
	}

	return sessionsFromWalk(gosnmp.ToBigInt(sysUp.Value).Uint64(), names, changes), nil
}

// sessionsFromWalk joins the ifName and ifLastChange columns on ifIndex.
// Both are TimeTicks (hundredths of a second) since agent start.
func sessionsFromWalk(sysUpTicks uint64, names, changes []gosnmp.SnmpPDU) []models.Session {
	lastChange := make(map[string]uint64, len(changes))
	for _, pdu := range changes {
		if pdu.Type != gosnmp.TimeTicks {
			continue
		}
		lastChange[oidIndex(oidIfLastChange, pdu.Name)] = gosnmp.ToBigInt(pdu.Value).Uint64()
	}

	sessions := []models.Session{}
	for _, pdu := range names {
		if pdu.Type != gosnmp.OctetString {
			continue
		}
		raw, ok := pdu.Value.([]byte)
		if !ok {
			continue
		}
		service, login, ok := parsePPPInterface(string(raw))
		if !ok {
			continue
		}
		idx := oidIndex(oidIfName, pdu.Name)
		var uptime time.Duration
		if changed, ok := lastChange[idx]; ok && sysUpTicks >= changed {
			uptime = time.Duration(sysUpTicks-changed) * 10 * time.Millisecond
		}
		sessions = append(sessions, models.Session{
			SessionID:   "if" + idx,
			LoginName:   login,
			Uptime:      models.Duration(uptime),
			ServiceType: service,
		})
	}
	return sessions
}

func oidIndex(prefix, name string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, prefix), ".")
}

// parsePPPInterface splits a dynamic interface name like "<pppoe-alice>"
// into its service and login.
func parsePPPInterface(name string) (service, login string, ok bool) {
	if !strings.HasPrefix(name, "<") || !strings.HasSuffix(name, ">") {
		return "", "", false
	}
	inner := name[1 : len(name)-1]
	service, login, ok = strings.Cut(inner, "-")
	if !ok || login == "" {
		return "", "", false
	}
	switch service {
	case "pppoe", "pptp", "l2tp", "sstp", "ovpn", "ppp":
		return service, login, true
	}
	return "", "", false
}
