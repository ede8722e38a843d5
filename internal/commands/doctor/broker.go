package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/core/config"
)

// BrokerCheck connects to the configured broker and disconnects again.
type BrokerCheck struct {
	config *config.Config
	dialer *broker.Dialer
}

// NewBrokerCheck creates a broker reachability check.
func NewBrokerCheck(cfg *config.Config, dialer *broker.Dialer) *BrokerCheck {
	return &BrokerCheck{config: cfg, dialer: dialer}
}

func (c *BrokerCheck) Name() string {
	return "Broker"
}

func (c *BrokerCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Broker options",
			Status: StatusFail,
			Detail: "configuration not loaded",
		})
		return result
	}

	resolved, err := c.config.Resolved()
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Broker credentials",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	opts, err := broker.OptionsFromConfig(&resolved)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Broker options",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	label := "Connect " + opts.BrokerURL()

	conn, err := c.dialer.Connect(ctx, opts)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  label,
			Status: StatusFail,
			Detail: connectDetail(err),
		})
		return result
	}
	conn.Close()

	detail := "client " + opts.ClientID
	switch {
	case opts.TLS == nil:
	case opts.TLS.InsecureSkipVerify:
		detail += ", certificate not verified"
	default:
		detail += ", certificate verified"
	}

	result.Items = append(result.Items, CheckItem{
		Label:  label,
		Status: StatusPass,
		Detail: detail,
	})
	return result
}

func connectDetail(err error) string {
	var ce *broker.ConnectError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch ce.Kind {
	case broker.KindRejected:
		return fmt.Sprintf("rejected: %s", broker.ReturnCodeText(ce.Code))
	case broker.KindCertificate:
		return fmt.Sprintf("certificate: %v", ce.Err)
	default:
		return fmt.Sprintf("transport: %v", ce.Err)
	}
}
