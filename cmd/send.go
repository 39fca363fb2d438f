// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/luxcast/luxcast/internal/config"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

var (
	sendType      string
	sendChunkSize int
	sendFEC       bool
	sendCompress  bool
	sendBitPeriod int
	sendFormat    string
	sendInput     string
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Encode a message into flash bits",
	Long: `Encode a message for transmission over a flashing display.

The payload comes from the argument, from --in, or from stdin. Payloads
larger than the chunk size are split into chunk envelopes and framed
individually; the output carries every frame in transmission order.

Output formats:
  bits      The encoded bit string ("0101...") on stdout
  schedule  A JSON flash schedule [{"bit":1,"ms":100}, ...]
  serial    Drive a serial flasher, one '0' or '1' byte per bit period

Examples:
  # Print the bits for a short text message
  luxcast send "hello world"

  # Flash a compressed file transfer through a serial flasher
  luxcast send --type file --compress --fec --in photo.bin \
    --format serial --port /dev/ttyACM0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendType, "type", "t", "text", "Message type tag (text, json, file, ...)")
	sendCmd.Flags().IntVar(&sendChunkSize, "chunk-size", 0, "Chunk size in bytes (default from config)")
	sendCmd.Flags().BoolVar(&sendFEC, "fec", false, "Apply forward error correction")
	sendCmd.Flags().BoolVar(&sendCompress, "compress", false, "Deflate the payload before framing")
	sendCmd.Flags().IntVar(&sendBitPeriod, "bit-period", 0, "Bit period in milliseconds (default from config)")
	sendCmd.Flags().StringVar(&sendFormat, "format", "bits", "Output format: bits, schedule, serial")
	sendCmd.Flags().StringVar(&sendInput, "in", "", "Read the payload from a file")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sendChunkSize > 0 {
		cfg.Send.ChunkSize = sendChunkSize
	}
	if sendFEC {
		cfg.Send.FEC = true
	}
	if sendCompress {
		cfg.Send.Compress = true
	}
	if sendBitPeriod > 0 {
		cfg.Receive.BitPeriodMs = sendBitPeriod
	}

	payload, err := readPayload(args)
	if err != nil {
		return err
	}

	tag, err := luxwire.ParseTypeTag(sendType)
	if err != nil {
		return err
	}

	opts := []luxwire.EncoderOption{luxwire.WithChunkSize(cfg.Send.ChunkSize)}
	if cfg.Send.Compress {
		opts = append(opts, luxwire.WithCompression())
	}
	if cfg.Send.FEC {
		opts = append(opts, luxwire.WithFEC(luxwire.DefaultFEC()))
	}

	bits, err := luxwire.NewEncoder(opts...).EncodeMessage(tag, payload)
	if err != nil {
		return err
	}

	switch sendFormat {
	case "bits":
		fmt.Println(bits.String())
		return nil
	case "schedule":
		return writeSchedule(os.Stdout, bits, cfg.BitPeriod())
	case "serial":
		return driveSerialFlasher(bits, cfg)
	default:
		return fmt.Errorf("unknown format: %s (use bits, schedule, or serial)", sendFormat)
	}
}

// readPayload resolves the message payload: argument, --in file, or stdin.
func readPayload(args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	if sendInput != "" {
		data, err := os.ReadFile(sendInput)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

// flashStep is one entry in the JSON flash schedule: the bit level and how
// long to hold it.
type flashStep struct {
	Bit int   `json:"bit"`
	Ms  int64 `json:"ms"`
}

func writeSchedule(w io.Writer, bits luxwire.Bits, period time.Duration) error {
	steps := make([]flashStep, len(bits))
	for i, b := range bits {
		steps[i] = flashStep{Bit: int(b), Ms: period.Milliseconds()}
	}
	return json.NewEncoder(w).Encode(steps)
}

// driveSerialFlasher writes one '0' or '1' byte per bit period, pacing a
// hardware flasher in real time.
func driveSerialFlasher(bits luxwire.Bits, cfg *config.Config) error {
	if cfg.Feed.Serial.Port == "" {
		return fmt.Errorf("serial output requires --port")
	}

	mode := &serial.Mode{
		BaudRate: cfg.Feed.Serial.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Feed.Serial.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %v", cfg.Feed.Serial.Port, err)
	}
	defer port.Close()

	period := cfg.BitPeriod()
	total := time.Duration(len(bits)) * period
	fmt.Printf("Flashing %d bits on %s @ %v per bit (%.1fs total)\n",
		len(bits), cfg.Feed.Serial.Port, period, total.Seconds())

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for _, b := range bits {
		<-ticker.C
		if _, err := port.Write([]byte{'0' + b}); err != nil {
			return fmt.Errorf("flasher write failed: %w", err)
		}
	}

	fmt.Printf("Done\n")
	return nil
}
