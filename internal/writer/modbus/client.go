// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// EndpointClient is a single connection (TCP or serial RTU) to one status
// memory endpoint. It serializes requests because it mutates the unit id
// per write.
type EndpointClient struct {
	mu      sync.Mutex
	handler handler
	client  modbus.Client
	setUnit func(uint8)
}

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Config struct {
	// Endpoint is tcp://host:port or rtu:///dev/ttyX?baud=19200&parity=E
	Endpoint string
	Timeout  time.Duration
}

// Serial line settings of an rtu:// endpoint.
type serialSettings struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("writer modbus: endpoint %q: %w", cfg.Endpoint, err)
	}

	c := &EndpointClient{}

	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("writer modbus: endpoint %q: host required", cfg.Endpoint)
		}
		h := modbus.NewTCPClientHandler(u.Host)
		h.Timeout = cfg.Timeout
		c.handler = h
		c.setUnit = func(id uint8) { h.SlaveId = id }

	case "rtu":
		ss, err := parseSerial(u)
		if err != nil {
			return nil, fmt.Errorf("writer modbus: endpoint %q: %w", cfg.Endpoint, err)
		}
		h := modbus.NewRTUClientHandler(ss.Device)
		h.BaudRate = ss.BaudRate
		h.DataBits = ss.DataBits
		h.Parity = ss.Parity
		h.StopBits = ss.StopBits
		h.Timeout = cfg.Timeout
		c.handler = h
		c.setUnit = func(id uint8) { h.SlaveId = id }

	default:
		return nil, fmt.Errorf("writer modbus: endpoint %q: unsupported scheme %q", cfg.Endpoint, u.Scheme)
	}

	if err := c.handler.Connect(); err != nil {
		return nil, err
	}
	c.client = modbus.NewClient(c.handler)
	return c, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)

	qty := uint16(len(regs))
	payload := packRegisters(regs)

	_, err := c.client.WriteMultipleRegisters(addr, qty, payload)
	return err
}

// parseSerial reads the device path and line settings of an rtu:// URL.
// Unset settings keep the Modbus RTU defaults (19200 8E1).
func parseSerial(u *url.URL) (serialSettings, error) {
	ss := serialSettings{
		Device:   u.Path,
		BaudRate: 19200,
		DataBits: 8,
		Parity:   "E",
		StopBits: 1,
	}
	if ss.Device == "" {
		return ss, errors.New("serial device required")
	}

	q := u.Query()
	ints := []struct {
		key string
		dst *int
	}{
		{"baud", &ss.BaudRate},
		{"data_bits", &ss.DataBits},
		{"stop_bits", &ss.StopBits},
	}
	for _, it := range ints {
		v := q.Get(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ss, fmt.Errorf("invalid %s %q", it.key, v)
		}
		*it.dst = n
	}

	if p := q.Get("parity"); p != "" {
		switch p {
		case "N", "E", "O":
			ss.Parity = p
		default:
			return ss, fmt.Errorf("invalid parity %q", p)
		}
	}
	return ss, nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
