package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"transbot/pkg/config"
	providertypes "transbot/pkg/provider/types"
)

// Category is the stable failure class logged and counted for a message.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryModel     Category = "model"
	CategoryAuth      Category = "auth"
	CategoryDelivery  Category = "delivery"
	CategoryConfig    Category = "config"
)

// Stage names the handling step a failure happened in.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageTranslate Stage = "translate"
	StageReply     Stage = "reply"
)

// DeliveryError reports a reply that could not be sent to its channel.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Channel == "" {
		return fmt.Sprintf("deliver reply: %v", e.Err)
	}

	return fmt.Sprintf("deliver reply to %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Classify returns the stable category for err, or "" for nil.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return CategoryDelivery
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return CategoryConfig
	}

	var providerErr *providertypes.Error
	if errors.As(err, &providerErr) {
		switch {
		case providerErr.Kind == providertypes.KindAuth:
			return CategoryAuth
		case providerErr.Transient():
			return CategoryTransport
		default:
			return CategoryModel
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransport
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransport
	}

	return CategoryModel
}
