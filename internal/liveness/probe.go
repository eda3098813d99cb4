package liveness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type ProbeKind int

const (
	// KindSetup means the request could not be built; it is never reported to chat.
	KindSetup ProbeKind = iota
	KindStatus
	KindTransport
)

// ProbeError classifies a failed probe.
type ProbeError struct {
	Kind ProbeKind
	Code int
	Err  error
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case KindSetup:
		return fmt.Sprintf("Internal error: %v", e.Err)
	case KindStatus:
		if e.Code == http.StatusServiceUnavailable {
			return "API has been very properly put in maintenance mode by the wonderful ops team, thanks for your understanding"
		}
		return fmt.Sprintf("API is down (error code: %d)", e.Code)
	default:
		return fmt.Sprintf("API seems down (transport error: %v)", e.Err)
	}
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Reportable reports whether err should be shown to humans. Setup failures are
// internal and only logged.
func Reportable(err error) bool {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind != KindSetup
	}
	return err != nil
}

// Probe sends an empty request and succeeds only on 200 OK.
func Probe(ctx context.Context, c *http.Client, method, target string) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return &ProbeError{Kind: KindSetup, Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Err != nil {
			err = uerr.Err
		}
		return &ProbeError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return &ProbeError{Kind: KindStatus, Code: resp.StatusCode}
	}
	return nil
}
