package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrNoPort means no MIDI output could be opened.
var ErrNoPort = errors.New("no MIDI output port")

// portScanTimeout bounds a port query; some backends (CoreMIDI) can hang.
const portScanTimeout = 3 * time.Second

// virtualOpener is implemented by drivers that can create their own ports
// (rtmididrv).
type virtualOpener interface {
	OpenVirtualOut(name string) (drivers.Out, error)
}

// ListPorts returns the names of the output ports of the registered driver.
func ListPorts() ([]string, error) {
	outs, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, o := range outs {
		names[i] = o.String()
	}
	return names, nil
}

func outPorts() ([]drivers.Out, error) {
	if drivers.Get() == nil {
		return nil, fmt.Errorf("%w: no MIDI driver registered", ErrNoPort)
	}
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()
	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(portScanTimeout):
		return nil, fmt.Errorf("listing MIDI ports timed out after %s", portScanTimeout)
	}
}

// OpenOut picks the output for the clock engine: the port whose name
// contains name, else a new virtual port called virtualName if the driver
// supports it, else the first port. With nothing available it returns
// ErrNoPort.
func OpenOut(name, virtualName string) (*PortSink, error) {
	outs, err := outPorts()
	if err != nil {
		return nil, err
	}

	if name != "" {
		want := strings.ToLower(name)
		for _, o := range outs {
			if strings.Contains(strings.ToLower(o.String()), want) {
				return NewPortSink(o)
			}
		}
	}

	if virtualName != "" {
		if v, ok := drivers.Get().(virtualOpener); ok {
			out, err := v.OpenVirtualOut(virtualName)
			if err == nil {
				return NewPortSink(out)
			}
			if len(outs) == 0 {
				return nil, fmt.Errorf("%w: virtual port %q: %v", ErrNoPort, virtualName, err)
			}
		}
	}

	if len(outs) == 0 {
		return nil, ErrNoPort
	}
	return NewPortSink(outs[0])
}
