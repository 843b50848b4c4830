package audio

import (
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/xlab/closer"

	"github.com/cbegin/midisynth-go/internal/dac"
)

// BaudRates lists the rates a serial DAC accepts.
var BaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

func IsValidBaudRate(r int) bool {
	for _, v := range BaudRates {
		if v == r {
			return true
		}
	}
	return false
}

// SerialDevice streams raw 8-bit samples to an external DAC on a serial
// port. The port itself paces the output.
type SerialDevice struct {
	portName string
	baudRate int
	chunk    int

	mu     sync.Mutex
	port   io.ReadWriteCloser
	writer *dac.WriterDevice
}

func NewSerialDevice(portName string, baudRate, chunk int) (*SerialDevice, error) {
	if !IsValidBaudRate(baudRate) {
		return nil, errors.Errorf("unsupported baud rate %d", baudRate)
	}
	return &SerialDevice{portName: portName, baudRate: baudRate, chunk: chunk}, nil
}

func (d *SerialDevice) isNullDevice() bool {
	return d.portName == "/dev/null" || d.portName == "--"
}

func (d *SerialDevice) Start(r *dac.Ring) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		var w io.Writer
		if !d.isNullDevice() {
			port, err := serial.Open(serial.OpenOptions{
				PortName:              d.portName,
				BaudRate:              uint(d.baudRate),
				DataBits:              8,
				StopBits:              1,
				ParityMode:            serial.PARITY_NONE,
				InterCharacterTimeout: 100,
				MinimumReadSize:       0,
			})
			if err != nil {
				return errors.WithStack(err)
			}
			d.port = port
			w = port
			closer.Bind(func() {
				d.Close()
			})
		}
		// 8N1 framing: ten bits on the wire per sample.
		d.writer = dac.NewWriterDevice(w, d.baudRate/10, d.chunk)
	}
	return d.writer.Start(r)
}

func (d *SerialDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		return nil
	}
	return d.writer.Stop()
}

func (d *SerialDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.writer != nil {
		err = d.writer.Close()
		d.writer = nil
	}
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = errors.WithStack(cerr)
		}
		d.port = nil
	}
	return err
}
