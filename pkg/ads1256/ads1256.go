// Package ads1256 drives the TI ADS1256 24-bit delta-sigma converter over
// SPI. It implements the adc.Reader contract for the measurement core;
// register framing and conversion pipelining stay private to this package.
package ads1256

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/isoflux/isoflux/pkg/adc"
)

// Ensure ADS1256 implements the raw sample contract.
var _ adc.Reader = (*ADS1256)(nil)

// spiFrequency is a safe power-of-two fraction of the Raspberry Pi core
// clock that stays within the chip's SCLK specification.
const spiFrequency = 976563 * physic.Hertz

// Config contains the hardware binding of one converter.
type Config struct {
	// SPIDevice is the periph.io SPI port name, e.g. "SPI0.1".
	SPIDevice string
	// DRDYPin is the data-ready input, e.g. "GPIO17". Active low.
	DRDYPin string
	// Gain is the PGA setting; one of 1, 2, 4, 8, 16, 32, 64.
	Gain int
	// Timeout bounds every data-ready wait. Self-calibration at low data
	// rates can hold DRDY high for up to roughly 1.2 seconds.
	Timeout time.Duration
}

// ADS1256 is one converter on the SPI bus.
type ADS1256 struct {
	port    spi.PortCloser
	conn    spi.Conn
	drdy    gpio.PinIn
	timeout time.Duration
}

// New opens the SPI port, programs the converter registers and runs a
// hardware self-calibration. Returns adc.ErrNotConnected when the bus or
// the data-ready pin cannot be reached.
func New(cfg Config) (*ADS1256, error) {
	port, err := spireg.Open(cfg.SPIDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", adc.ErrNotConnected, cfg.SPIDevice, err)
	}
	conn, err := port.Connect(spiFrequency, spi.Mode1, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: connecting %s: %v", adc.ErrNotConnected, cfg.SPIDevice, err)
	}
	drdy := gpioreg.ByName(cfg.DRDYPin)
	if drdy == nil {
		port.Close()
		return nil, fmt.Errorf("%w: DRDY pin %q not found", adc.ErrNotConnected, cfg.DRDYPin)
	}
	if err := drdy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: configuring DRDY pin: %v", adc.ErrNotConnected, err)
	}

	d := &ADS1256{
		port:    port,
		conn:    conn,
		drdy:    drdy,
		timeout: cfg.Timeout,
	}

	if err := d.reset(); err != nil {
		port.Close()
		return nil, err
	}
	// Input buffer on for the high-impedance bridge legs; auto-calibrate
	// on register changes so gain and data rate writes start from a
	// calibrated state.
	if err := d.writeReg(regStatus, statusACAL|statusBufEn); err != nil {
		port.Close()
		return nil, err
	}
	if err := d.writeReg(regAdcon, adconClkOff|adconSDCSOff|gainCode(cfg.Gain)); err != nil {
		port.Close()
		return nil, err
	}
	if err := d.writeReg(regDrate, drate50SPS); err != nil {
		port.Close()
		return nil, err
	}
	if err := d.SelfCal(); err != nil {
		port.Close()
		return nil, err
	}
	log.Printf("ads1256: %s initialized, gain %d, 50 SPS", cfg.SPIDevice, cfg.Gain)
	return d, nil
}

// Close releases the SPI port.
func (d *ADS1256) Close() error {
	return d.port.Close()
}

// SelfCal issues an offset and gain self-calibration and waits for it to
// complete. DRDY stays high for the whole calibration, hence the long
// bounded wait.
func (d *ADS1256) SelfCal() error {
	if err := d.send(cmdSelfCal); err != nil {
		return err
	}
	if err := d.waitDRDY(); err != nil {
		return fmt.Errorf("self calibration: %w", err)
	}
	return nil
}

// Read switches the multiplexer to addr, restarts the conversion and
// returns one settled sample.
func (d *ADS1256) Read(addr byte) (int32, error) {
	if err := d.switchMux(addr); err != nil {
		return 0, err
	}
	if err := d.waitDRDY(); err != nil {
		return 0, err
	}
	return d.readData()
}

// ReadSequence cycles the multiplexer through seq, reading one sample per
// address. The chip converts continuously, so the next address is
// programmed while the current conversion is read out; this keeps the
// per-sample latency at one conversion period.
func (d *ADS1256) ReadSequence(seq []byte, out []int32) error {
	if len(seq) == 0 {
		return nil
	}
	if len(out) != len(seq) {
		return fmt.Errorf("ads1256: output length %d does not match sequence length %d",
			len(out), len(seq))
	}

	if err := d.switchMux(seq[0]); err != nil {
		return err
	}
	for i := range seq {
		if err := d.waitDRDY(); err != nil {
			return err
		}
		// Program the following address before reading out the finished
		// conversion of the current one.
		if err := d.switchMux(seq[(i+1)%len(seq)]); err != nil {
			return err
		}
		v, err := d.readData()
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// switchMux programs the multiplexer and restarts the conversion.
func (d *ADS1256) switchMux(addr byte) error {
	if err := d.writeReg(regMux, addr); err != nil {
		return err
	}
	if err := d.send(cmdSync); err != nil {
		return err
	}
	return d.send(cmdWakeup)
}

// readData issues RDATA and returns the 24-bit two's complement result
// sign-extended to 32 bits.
func (d *ADS1256) readData() (int32, error) {
	if err := d.send(cmdRData); err != nil {
		return 0, err
	}
	// t6: command to data delay, 50 master clock cycles.
	time.Sleep(10 * time.Microsecond)

	var buf [3]byte
	if err := d.conn.Tx([]byte{0, 0, 0}, buf[:]); err != nil {
		return 0, fmt.Errorf("ads1256: reading sample: %w", err)
	}
	raw := uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	return int32(raw<<8) >> 8, nil
}

// waitDRDY polls the active-low data-ready pin until a conversion is
// available. Failing fast here is what keeps a wedged converter from
// hanging the acquisition loop.
func (d *ADS1256) waitDRDY() error {
	deadline := time.Now().Add(d.timeout)
	for d.drdy.Read() == gpio.High {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", adc.ErrTimeout, d.timeout)
		}
		time.Sleep(time.Microsecond)
	}
	return nil
}

// writeReg writes one register through the WREG command.
func (d *ADS1256) writeReg(reg, value byte) error {
	if err := d.conn.Tx([]byte{cmdWReg | reg&0x0F, 0x00, value}, nil); err != nil {
		return fmt.Errorf("ads1256: writing register 0x%02X: %w", reg, err)
	}
	return nil
}

// send transmits a single command byte.
func (d *ADS1256) send(cmd byte) error {
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("ads1256: command 0x%02X: %w", cmd, err)
	}
	return nil
}

// reset restores the register defaults and leaves continuous readout mode.
func (d *ADS1256) reset() error {
	if err := d.send(cmdReset); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return d.send(cmdSDataC)
}
