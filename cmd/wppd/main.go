package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wpp-puppet/internal/bus"
	"github.com/matheus3301/wpp-puppet/internal/daemon"
	"github.com/matheus3301/wpp-puppet/internal/model"
	"github.com/matheus3301/wpp-puppet/internal/session"
	"github.com/skip2/go-qrcode"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	qrFlag := flag.Bool("qr", true, "print login QR codes to the terminal")
	flag.Parse()

	sessionName, err := session.ResolveValid(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := []fx.Option{
		daemon.Module(daemon.Params{SessionName: sessionName}),
		fx.NopLogger,
	}
	if *qrFlag {
		opts = append(opts, fx.Invoke(printScans))
	}
	fx.New(opts...).Run()
}

// printScans renders each waiting login QR code on stdout.
func printScans(lc fx.Lifecycle, b *bus.Bus, logger *zap.Logger) {
	unsubscribe := b.SubscribeFunc(model.KindScan, func(evt bus.Event) {
		scan, ok := evt.Payload.(model.ScanEvent)
		if !ok || scan.Status != model.ScanStatusWaiting || scan.QRCode == "" {
			return
		}
		qr, err := qrcode.New(scan.QRCode, qrcode.Medium)
		if err != nil {
			logger.Warn("render qr code", zap.Error(err))
			return
		}
		fmt.Println(qr.ToSmallString(false))
		fmt.Println("Scan the code above with WhatsApp > Linked devices")
	})
	lc.Append(fx.StopHook(unsubscribe))
}
