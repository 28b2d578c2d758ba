package verification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
)

// Result is the outcome of one CAPTCHA verification.
type Result int

const (
	// ResultRejected means the provider answered and the response failed.
	ResultRejected Result = iota
	// ResultVerified means the provider confirmed the response.
	ResultVerified
	// ResultError means the provider could not be reached or answered with
	// something unusable. The caller must treat the request as unverified.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultVerified:
		return "verified"
	case ResultError:
		return "error"
	default:
		return "rejected"
	}
}

// Gateway verifies CAPTCHA responses against an external provider. The
// provider speaks form-encoded POST in and JSON out; only the success flag of
// the reply matters.
type Gateway struct {
	endpoint string
	secret   string
	client   *http.Client
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewGateway creates a verification gateway. A zero timeout defaults to five
// seconds.
func NewGateway(endpoint, secret string, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Gateway{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		tracer:   otel.Tracer("verification"),
	}
}

type providerReply struct {
	Success bool `json:"success"`
}

// Verify checks a CAPTCHA response token with the provider. It fails closed:
// every path that does not see an explicit success from the provider returns
// ResultRejected or ResultError.
func (g *Gateway) Verify(ctx context.Context, response string) (Result, error) {
	ctx, span := g.tracer.Start(ctx, "verification.verify")
	defer span.End()

	if response == "" {
		return ResultRejected, domainerrors.NewValidationError("EMPTY_RESPONSE", "captcha response is required")
	}

	form := url.Values{
		"secret":   {g.secret},
		"response": {response},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ResultError, domainerrors.NewInternalError("building verification request failed").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		// Unreachable provider is not a rejection; the caller decides how to
		// degrade, but never treats this as verified.
		span.SetAttributes(attribute.String("result", ResultError.String()))
		g.logger.Error("captcha provider unreachable", zap.Error(err))
		return ResultError, domainerrors.NewVerificationTransportError("captcha provider unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetAttributes(attribute.Int("status", resp.StatusCode))
		g.logger.Warn("captcha provider returned non-success status",
			zap.Int("status", resp.StatusCode))
		return ResultRejected, domainerrors.NewMalformedResponseError("captcha provider",
			"unexpected status "+resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ResultError, domainerrors.NewVerificationTransportError("reading provider reply failed").WithCause(err)
	}

	var reply providerReply
	if err := json.Unmarshal(body, &reply); err != nil {
		g.logger.Warn("captcha provider reply was not valid JSON", zap.Error(err))
		return ResultRejected, domainerrors.NewMalformedResponseError("captcha provider", "invalid JSON body")
	}

	if !reply.Success {
		span.SetAttributes(attribute.String("result", ResultRejected.String()))
		return ResultRejected, nil
	}

	span.SetAttributes(attribute.String("result", ResultVerified.String()))
	return ResultVerified, nil
}
