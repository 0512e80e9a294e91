// Command qrisctl inspects and builds QRIS payloads from the command line.
//
// Usage:
//
//	qrisctl crc "<text>"
//	qrisctl encode --amount 100007 [--payload <static>] [--png out.png]
//	qrisctl verify "<payload>"
//	qrisctl extract "Dana masuk Rp 100.007"
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mmdatafocus/qris_backend/notification"
	"github.com/mmdatafocus/qris_backend/qris"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "qrisctl",
		Short:         "Inspect and build QRIS payloads",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.AddCommand(newCRCCmd(), newEncodeCmd(), newVerifyCmd(), newExtractCmd())
	return root
}

func newCRCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crc <text>",
		Short: "Print the CRC-16/CCITT-FALSE checksum of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), qris.CRC16(args[0]))
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	var (
		payload string
		amount  int64
		pngPath string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Embed an amount into a static payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return fmt.Errorf("--amount must be positive")
			}
			if payload == "" {
				payload = os.Getenv("QRIS_STATIC_PAYLOAD")
			}
			if payload == "" {
				return fmt.Errorf("--payload or QRIS_STATIC_PAYLOAD is required")
			}
			dynamic := qris.EncodeDynamicAmount(payload, amount)
			if dynamic == payload {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: payload has no checksum field; returned unchanged")
			}
			fmt.Fprintln(cmd.OutOrStdout(), dynamic)
			if pngPath != "" {
				if err := qrcode.WriteFile(dynamic, qrcode.Medium, size, pngPath); err != nil {
					return fmt.Errorf("write png: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "static QRIS payload (defaults to $QRIS_STATIC_PAYLOAD)")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in whole rupiah")
	cmd.Flags().StringVar(&pngPath, "png", "", "also write the QR code as a PNG to this path")
	cmd.Flags().IntVar(&size, "size", qris.DefaultImageSize, "PNG size in pixels")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <payload>",
		Short: "Check the payload checksum and print its top-level fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			payload := strings.TrimSpace(args[0])
			fields, err := qris.ParseTLV(payload)
			if err != nil {
				return err
			}
			for _, f := range fields {
				fmt.Fprintf(out, "%s %02d %s\n", f.Tag, len(f.Value), f.Value)
			}
			if !qris.VerifyChecksum(payload) {
				return fmt.Errorf("checksum mismatch")
			}
			if amount, ok := qris.ExtractAmountField(payload); ok {
				fmt.Fprintf(out, "amount: %s\n", amount)
			}
			fmt.Fprintln(out, "checksum: ok")
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var pkg string
	cmd := &cobra.Command{
		Use:   "extract <notification text>",
		Short: "Extract the rupiah amount and source from notification text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			amount, ok := notification.ExtractAmount(text)
			if !ok {
				return fmt.Errorf("no amount found")
			}
			src := notification.ClassifySource(pkg, text)
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(amount, 10), src.Label)
			return nil
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "android package name of the notifying app")
	return cmd
}
