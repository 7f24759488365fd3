package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/pragmaticQt/j1939"
	"github.com/pragmaticQt/j1939/bus"
	"github.com/pragmaticQt/j1939/ecu"
	"github.com/pragmaticQt/j1939/internal/bridge"
	"github.com/pragmaticQt/j1939/internal/catalog"
	"github.com/pragmaticQt/j1939/internal/logging"
)

// Command flags
var (
	priority    uint8
	source      uint8
	destination uint8
	useMQTT     bool
	knownOnly   bool
	settleTime  time.Duration
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(serveCmd)

	encodeCmd.Flags().Uint8Var(&priority, "priority", 6, "Priority (0-7)")
	encodeCmd.Flags().Uint8Var(&source, "source", 0, "Source address")
	encodeCmd.Flags().Uint8Var(&destination, "destination", j1939.GlobalAddress, "Destination address of peer-to-peer groups")

	monitorCmd.Flags().BoolVar(&useMQTT, "mqtt", false, "Publish decoded frames to the configured MQTT broker")
	monitorCmd.Flags().BoolVar(&knownOnly, "known-only", false, "Only publish parameter groups of the catalog")

	simulateCmd.Flags().DurationVar(&settleTime, "wait", time.Second, "Time to wait for answers after the last request")
}

var encodeCmd = &cobra.Command{
	Use:   "encode <message> [signal=value ...]",
	Short: "Encode a catalog message into a frame",
	Long: `Encode a message of the catalog from physical signal values.

Signals which are not given are sent as raw zero. Prints the 29-bit
identifier and the payload in hex.`,
	Example: `  # EEC1 of engine #1 at 686.125 rpm
  j1939ctl encode EEC1 --priority 3 engine_speed=686.125 actual_engine_percent_torque=-69

  # A03 vehicle speed
  j1939ctl encode A03VehicleSpeed --source 3 target_vehicle_speed=-948 actual_vehicle_speed=1347`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func runEncode(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	m, ok := cat.ByName(args[0])
	if !ok {
		return fmt.Errorf("unknown message %q", args[0])
	}

	values := make(map[string]float64, len(args)-1)
	for _, arg := range args[1:] {
		name, value, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("invalid signal %q, want name=value", arg)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("signal %s: %w", name, err)
		}
		values[name] = v
	}

	data, err := m.Encode(values)
	if err != nil {
		return err
	}
	frm := j1939.NewFramePGN(priority, m.PGN, destination, source, data)
	fmt.Printf("%08X %s\n", frm.ID(), hex.EncodeToString(frm.Payload()))
	return nil
}

var decodeCmd = &cobra.Command{
	Use:   "decode <id> <payload>",
	Short: "Decode a frame given as hex identifier and payload",
	Example: `  j1939ctl decode 0CF00400 a4503871150d031e
  j1939ctl decode 18FF3203 4cfc4305c1ea2611`,
	Args: cobra.ExactArgs(2),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid identifier: %w", err)
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if len(data) > j1939.MaxPayload {
		return fmt.Errorf("payload has %d bytes, at most %d allowed", len(data), j1939.MaxPayload)
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	frm := j1939.FromID(uint32(id), data)
	printFrame(frm)

	m, ok := cat.Lookup(frm.BasePGN())
	if !ok {
		return nil
	}
	values, err := m.Decode(frm.Payload())
	if err != nil {
		return err
	}
	fmt.Printf("Message:      %s\n", m.Name)
	printSignals(m, values)
	return nil
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print J1939 frames received on the bus",
	Long: `Print every J1939 frame received on the bus until interrupted.

With --mqtt, frames are also decoded with the catalog and published to the
configured broker on <topic_prefix>/<pgn>.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	defer conn.Subscribe(func(frm j1939.Frame) {
		logging.LogFrame("received", frm)
		fmt.Println(frm)
	})()

	if useMQTT {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("no MQTT broker configured")
		}
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		pub := bridge.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logging.GetLogger())
		if err := pub.Connect(10 * time.Second); err != nil {
			return err
		}
		defer pub.Disconnect()

		h := &bridge.Handler{
			Publisher: pub,
			Catalog:   cat,
			Prefix:    cfg.MQTT.TopicPrefix,
			KnownOnly: knownOnly,
			Log:       logging.GetLogger(),
		}
		defer conn.Subscribe(h.HandleFrame)()
	}

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		logging.Warn("Bus disconnected", zap.Error(conn.Err()))
		return conn.Err()
	}
}

var readCmd = &cobra.Command{
	Use:   "read <pid>",
	Short: "Read one parameter of the ECU",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	pid, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("invalid parameter id: %w", err)
	}

	conn, err := openBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	proxy := newProxy(conn)
	defer proxy.Close()

	value, err := proxy.ReadParameter(cmd.Context(), uint16(pid))
	if err != nil {
		return err
	}
	fmt.Printf("%d -> %d\n", pid, value)
	return nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a burst of parameter reads to the ECU",
	Long: fmt.Sprintf(`Send %d parameter requests to the ECU without waiting in between.

The burst provokes a full transmit buffer. Every answer is printed as
"pid -> value".`, ecu.DefaultSimulatedReads),
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	conn, err := openBus()
	if err != nil {
		logging.Error("Could not connect to CAN bus device", zap.Error(err))
		fmt.Println("ERROR: Could not connect to CAN bus device.")
		return err
	}
	defer conn.Close()

	proxy := newProxy(conn)
	defer proxy.Close()

	sim := ecu.NewSimulator(proxy, logging.GetLogger())
	sim.LogMessage = func(line string) {
		fmt.Println(line)
	}
	if err := sim.Run(cmd.Context()); err != nil {
		return err
	}

	select {
	case <-time.After(settleTime):
	case <-cmd.Context().Done():
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer parameter reads as virtual ECU",
	Long: `Answer parameter reads addressed to ecu_address with the values of the
parameters table of the configuration file until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	server := ecu.NewServer(cfg.ECUAddress, ecu.Parameters(cfg.Parameters).Lookup, ecu.WithLogger(logging.GetLogger()))
	server.Listen(conn)
	defer server.Close()

	logging.Info("Virtual ECU ready",
		zap.Uint8("address", cfg.ECUAddress),
		zap.Int("parameters", len(cfg.Parameters)),
	)

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return conn.Err()
	}
}

func openBus() (*bus.Conn, error) {
	conn := bus.New(cfg.Interface, bus.WithLogger(logging.GetLogger()))
	if err := conn.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Interface, err)
	}
	return conn, nil
}

func newProxy(conn *bus.Conn) *ecu.Proxy {
	return ecu.NewProxy(conn, cfg.SourceAddress, cfg.ECUAddress,
		ecu.WithLogger(logging.GetLogger()),
		ecu.WithTimeout(cfg.Timeout),
		ecu.WithRetry(cfg.Attempts, ecu.DefaultDelay),
	)
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog)
}

func printFrame(frm j1939.Frame) {
	if !frm.IsValid() {
		fmt.Printf("Frame:        %v\n", frm)
		return
	}
	kind := "broadcast"
	if frm.IsPeerToPeer() {
		kind = "peer-to-peer"
	}
	if frm.IsProprietary() {
		kind += ", proprietary"
	}
	fmt.Printf("Identifier:   %08X\n", frm.ID())
	fmt.Printf("Priority:     %d\n", frm.Priority())
	fmt.Printf("PGN:          %05X (%s)\n", frm.BasePGN(), kind)
	fmt.Printf("Source:       %02X\n", frm.SourceAddress())
	fmt.Printf("Destination:  %02X\n", frm.DestinationAddress())
	fmt.Printf("Payload:      % X\n", frm.Payload())
}

func printSignals(m *catalog.Message, values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	units := make(map[string]string, len(m.Signals))
	for _, s := range m.Signals {
		units[s.Name] = s.Unit
	}
	for _, name := range names {
		fmt.Printf("  %-40s %g %s\n", name, values[name], units[name])
	}
}
