package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Config locates the partner registration endpoint. It is resolved by the
// caller for every attempt.
type Config struct {
	URL    string
	APIKey string
}

// Request is the registration payload posted to the partner API.
type Request struct {
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	OrderReference string  `json:"order_reference"`
	AssessmentName string  `json:"assessment_name"`
	PurchaseDate   *string `json:"purchase_date"`
	Amount         float64 `json:"amount"`
}

// NewRequest builds the registration payload from a purchase log snapshot.
func NewRequest(log *domain.PurchaseLog) Request {
	req := Request{
		Email:          log.CustomerEmail,
		Name:           log.CustomerName,
		Phone:          log.CustomerPhone,
		OrderReference: log.Reference,
		AssessmentName: log.AssessmentName,
		Amount:         log.AmountTotal,
	}
	if !log.PurchaseDate.IsZero() {
		purchaseDate := log.PurchaseDate.UTC().Format(time.RFC3339)
		req.PurchaseDate = &purchaseDate
	}
	return req
}

// Response is the success body returned by the partner API.
type Response struct {
	UserID ExternalID `json:"user_id"`
}

// ExternalID accepts both string and numeric identifiers.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	*id = ExternalID(n.String())
	return nil
}

// Result is the outcome of a single registration attempt.
type Result struct {
	Success        bool
	Status         domain.RegistrationStatus
	StatusCode     int
	ExternalUserID string
	RawResponse    string
	Err            error
}

// Outcome converts the result into the fields persisted on a purchase log.
// A configuration failure leaves the stored response untouched.
func (r Result) Outcome() domain.RegistrationOutcome {
	outcome := domain.RegistrationOutcome{Status: r.Status}
	if KindOf(r.Err) == KindConfigurationMissing {
		return outcome
	}

	raw := r.RawResponse
	outcome.RawAPIResponse = &raw
	if r.Success {
		userID := r.ExternalUserID
		outcome.ExternalUserID = &userID
	}
	return outcome
}

// Client registers customers with the partner API. It makes exactly one
// attempt per call.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	client := resty.New()
	client.SetTimeout(defaultTimeout)
	client.SetRetryCount(0)

	c, _ := NewClientWithResty(client, logger)
	return c
}

func NewClientWithResty(client *resty.Client, logger *zap.Logger) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}
	client.SetRetryCount(0)

	return &Client{http: client, logger: logger}, nil
}

func (c *Client) Register(ctx context.Context, cfg Config, req Request) Result {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		c.logger.Error("registration endpoint url is not configured",
			zap.String("orderReference", req.OrderReference),
		)
		return failed(0, "", &Error{
			Kind:    KindConfigurationMissing,
			Message: "registration endpoint url is not configured",
		})
	}

	c.logger.Info("sending registration",
		zap.String("orderReference", req.OrderReference),
		zap.String("email", req.Email),
	)

	httpReq := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req)
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		httpReq.SetAuthToken(key)
	}

	response, err := httpReq.Post(endpoint)
	if err != nil {
		return c.transportFailure(req, err)
	}
	if response == nil {
		return c.transportFailure(req, fmt.Errorf("registration endpoint returned empty response"))
	}

	statusCode := response.StatusCode()
	body := response.Body()

	if statusCode == http.StatusOK || statusCode == http.StatusCreated {
		var parsed Response
		if err := json.Unmarshal(body, &parsed); err != nil {
			return c.transportFailure(req, fmt.Errorf("malformed registration response: %w", err))
		}

		c.logger.Info("customer registered",
			zap.String("orderReference", req.OrderReference),
			zap.String("email", req.Email),
			zap.String("externalUserId", string(parsed.UserID)),
		)
		return Result{
			Success:        true,
			Status:         domain.RegistrationStatusSent,
			StatusCode:     statusCode,
			ExternalUserID: string(parsed.UserID),
			RawResponse:    prettyJSON(body),
		}
	}

	raw := rejectedBody(statusCode, body)
	c.logger.Error("registration rejected",
		zap.String("orderReference", req.OrderReference),
		zap.Int("status", statusCode),
	)
	return failed(statusCode, raw, &Error{
		Kind:       KindRemoteRejected,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("registration endpoint returned status %d", statusCode),
	})
}

func (c *Client) transportFailure(req Request, err error) Result {
	c.logger.Error("registration request failed",
		zap.String("orderReference", req.OrderReference),
		zap.Error(err),
	)
	return failed(0, err.Error(), &Error{
		Kind:  KindTransportFailure,
		Cause: err,
	})
}

func failed(statusCode int, raw string, err error) Result {
	return Result{
		Status:      domain.RegistrationStatusFailed,
		StatusCode:  statusCode,
		RawResponse: raw,
		Err:         err,
	}
}

// prettyJSON re-indents a JSON body with two spaces, keeping key order.
func prettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return strings.TrimSpace(string(body))
	}
	return buf.String()
}

func rejectedBody(statusCode int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fmt.Sprintf("registration endpoint returned status %d", statusCode)
	}
	if json.Valid(trimmed) {
		return prettyJSON(trimmed)
	}
	return string(trimmed)
}
