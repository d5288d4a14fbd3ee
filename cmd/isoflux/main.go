// Command isoflux runs one heat-balance calorimeter: it scans the RTD
// bridge channels, computes per-channel thermal power and serves the MQTT
// command surface. Runs against the SPI converter hardware or, with -mock,
// against a synthetic isothermal scene.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/eiannone/keyboard"
	"periph.io/x/host/v3"

	"github.com/isoflux/isoflux/pkg/adc"
	"github.com/isoflux/isoflux/pkg/ads1256"
	"github.com/isoflux/isoflux/pkg/config"
	"github.com/isoflux/isoflux/pkg/flow"
	"github.com/isoflux/isoflux/pkg/measure"
	"github.com/isoflux/isoflux/pkg/physics"
	"github.com/isoflux/isoflux/pkg/remote"
	"github.com/isoflux/isoflux/pkg/render"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a synthetic scene instead of the SPI converter")
		brokerFlag = flag.String("broker", "", "MQTT broker host override")
		panelFlag  = flag.Bool("panel", true, "Draw the console status panel")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *brokerFlag != "" {
		cfg.MQTT.Host = *brokerFlag
	}

	reader, err := openReader(cfg, *mockFlag)
	if err != nil {
		log.Fatalf("Failed to open converter: %v", err)
	}

	fluid, err := physics.FluidByName(cfg.Fluid)
	if err != nil {
		log.Fatalf("Failed to resolve working fluid: %v", err)
	}

	estimator, stopFlow, err := openEstimator(reader, cfg, fluid)
	if err != nil {
		log.Fatalf("Failed to open flow sensor: %v", err)
	}
	defer stopFlow()

	instrument, err := measure.New(reader, estimator, cfg)
	if err != nil {
		log.Fatalf("Failed to build measurement chain: %v", err)
	}

	if *panelFlag {
		instrument.OnUpdate(render.Print)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surface := remote.New(cfg.ID, instrument, cancel)
	if err := surface.Connect(cfg.MQTT.Host, cfg.MQTT.Port); err != nil {
		log.Fatalf("Failed to connect MQTT: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := surface.Run(ctx); err != nil {
			log.Printf("mqtt surface stopped: %v", err)
		}
	}()

	go watchSignals(cancel)
	go watchKeyboard(instrument, cancel)

	log.Printf("%s: measuring %d channel pairs, fluid %s, flow mode %s",
		cfg.ID, len(cfg.FlowSequence)-1, fluid.Name, cfg.Flow.Mode)

	runErr := instrument.Run(ctx)
	cancel()
	wg.Wait()

	if runErr != nil {
		log.Fatalf("Measurement loop failed: %v", runErr)
	}
	log.Printf("%s: stopped", cfg.ID)
}

// openReader returns the converter backend: the SPI hardware, or a mock
// programmed with a synthetic isothermal scene.
func openReader(cfg *config.Config, useMock bool) (adc.Reader, error) {
	if useMock {
		return mockReader(cfg)
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return ads1256.New(ads1256.Config{
		SPIDevice: cfg.ADC.SPIDevice,
		DRDYPin:   cfg.ADC.DRDYPin,
		Gain:      cfg.ADC.Gain,
		Timeout:   cfg.ADC.DRDYTimeout,
	})
}

// mockReader programs a Mock with an isothermal 25 degC scene and a small
// flow signal, with some converter noise on top.
func mockReader(cfg *config.Config) (adc.Reader, error) {
	temps := make(map[string]float64, len(cfg.FlowSequence))
	for _, name := range cfg.FlowSequence {
		temps[name] = 25.0
	}
	counts, err := measure.SyntheticCounts(cfg, temps, 0.5)
	if err != nil {
		return nil, err
	}
	mock := adc.NewMock()
	for addr, v := range counts {
		mock.SetCount(addr, v)
	}
	mock.SetNoise(20)
	log.Printf("mock converter: isothermal scene at 25 degC")
	return mock, nil
}

// openEstimator builds the flow estimator for the configured sensing
// strategy. The returned stop function releases the GPIO edge source in
// pulse mode.
func openEstimator(reader adc.Reader, cfg *config.Config, fluid physics.Fluid) (flow.Estimator, func(), error) {
	switch cfg.Flow.Mode {
	case config.FlowModeVoltage:
		s := flow.NewVoltageSensor(reader,
			config.MuxAddr(cfg.Flow.Mux, cfg.ADC.CommonMux),
			cfg.Flow.Offset, cfg.VPerDigit(), cfg.Flow.Sensitivity,
			cfg.Filter.FlowWindow, fluid.Density)
		if err := s.Prime(); err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case config.FlowModePulse:
		src, err := flow.NewGPIOEdgeSource(cfg.Flow.GPIOPin)
		if err != nil {
			return nil, nil, err
		}
		s := flow.NewPulseSensor(src, cfg.Flow.Sensitivity, cfg.Flow.Period, fluid.Density)
		if err := s.Start(); err != nil {
			src.Close()
			return nil, nil, err
		}
		return s, func() { src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown flow mode %q", cfg.Flow.Mode)
	}
}

// watchSignals cancels the run context on SIGINT or SIGTERM.
func watchSignals(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Printf("received %v, shutting down", s)
	cancel()
}

// watchKeyboard serves the local console: 'z' zeroes the calibration on
// every channel, any other key shuts the instrument down.
func watchKeyboard(instrument *measure.IsoFlux, cancel context.CancelFunc) {
	if err := keyboard.Open(); err != nil {
		log.Printf("console keys unavailable: %v", err)
		return
	}
	defer keyboard.Close()

	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		if char == 'z' || char == 'Z' {
			instrument.ZeroAll()
			log.Printf("console: zeroed all channels")
			continue
		}
		log.Printf("console: key %q (%v), shutting down", char, key)
		cancel()
		return
	}
}
