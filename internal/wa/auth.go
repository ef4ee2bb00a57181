package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"
)

// Connect opens the connection. Without stored credentials it starts the
// QR pairing flow first and reports its progress as qr, authenticated and
// auth_failure events; the ready event follows once connected.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.IsLoggedIn() {
		a.logger.Info("connecting to WhatsApp")
		return a.client.Connect()
	}

	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	// Connect must be called after GetQRChannel.
	a.logger.Info("connecting to WhatsApp for pairing")
	if err := a.client.Connect(); err != nil {
		a.emit(AuthFailureEvent{Reason: err.Error()})
		return fmt.Errorf("connect: %w", err)
	}
	go a.pumpQR(qrChan)
	return nil
}

// pumpQR forwards pairing progress until the channel closes.
func (a *Adapter) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		if evt, ok := qrEvent(item); ok {
			a.emit(evt)
		} else {
			a.logger.Debug("pairing event ignored", zap.String("event", item.Event))
		}
	}
}

// qrEvent maps one pairing channel item to a transport event.
func qrEvent(item whatsmeow.QRChannelItem) (Event, bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return QREvent{Code: item.Code}, true
	case whatsmeow.QRChannelSuccess.Event:
		return AuthenticatedEvent{}, true
	case whatsmeow.QRChannelTimeout.Event:
		return AuthFailureEvent{Reason: "timeout"}, true
	case whatsmeow.QRChannelEventError:
		reason := "pairing failed"
		if item.Error != nil {
			reason = item.Error.Error()
		}
		return AuthFailureEvent{Reason: reason}, true
	}
	if item.Error != nil {
		return AuthFailureEvent{Reason: item.Error.Error()}, true
	}
	return nil, false
}
