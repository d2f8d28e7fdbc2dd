// internal/infra/notify/client.go
package notify

import (
	"context"
	"fmt"
	"time"

	domainNotify "water_billing_service/internal/domain/notify"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	emailPath  = "/v2/notifications/email"
	letterPath = "/v2/notifications/letter"
	statusPath = "/v2/notifications/{id}"

	// API keys end with "-<service id>-<secret>", both UUIDs.
	uuidLen   = 36
	apiKeyMin = 2*uuidLen + 1
)

// Client talks to the GOV.UK Notify v2 REST API.
type Client struct {
	http      *resty.Client
	serviceID string
	secret    []byte
	now       func() time.Time
	logger    *logrus.Entry
}

// NewClient builds a client from a full Notify API key.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Entry) (*Client, error) {
	serviceID, secret, err := ParseAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "water-billing-service/notify"),
		serviceID: serviceID,
		secret:    []byte(secret),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// ParseAPIKey splits an API key into its service id and signing secret.
func ParseAPIKey(apiKey string) (serviceID, secret string, err error) {
	if len(apiKey) < apiKeyMin {
		return "", "", fmt.Errorf("notify api key is too short")
	}
	secret = apiKey[len(apiKey)-uuidLen:]
	serviceID = apiKey[len(apiKey)-2*uuidLen-1 : len(apiKey)-uuidLen-1]
	return serviceID, secret, nil
}

type emailBody struct {
	EmailAddress    string            `json:"email_address"`
	TemplateID      string            `json:"template_id"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

type letterBody struct {
	TemplateID      string            `json:"template_id"`
	Personalisation map[string]string `json:"personalisation"`
	Reference       string            `json:"reference,omitempty"`
}

type sendResult struct {
	ID string `json:"id"`
}

type statusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorBody struct {
	StatusCode int                        `json:"status_code"`
	Errors     []domainNotify.ErrorDetail `json:"errors"`
}

func (c *Client) SendEmail(ctx context.Context, req domainNotify.EmailRequest) (*domainNotify.SendResponse, error) {
	body := emailBody{
		EmailAddress:    req.EmailAddress,
		TemplateID:      req.TemplateID,
		Personalisation: req.Personalisation,
		Reference:       req.Reference,
	}
	return c.send(ctx, emailPath, body)
}

func (c *Client) SendLetter(ctx context.Context, req domainNotify.LetterRequest) (*domainNotify.SendResponse, error) {
	body := letterBody{
		TemplateID:      req.TemplateID,
		Personalisation: req.Personalisation,
		Reference:       req.Reference,
	}
	return c.send(ctx, letterPath, body)
}

func (c *Client) GetStatus(ctx context.Context, notifyID string) (*domainNotify.StatusResponse, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out statusResult
	var failure errorBody
	resp, err := r.SetPathParam("id", notifyID).
		SetResult(&out).
		SetError(&failure).
		Get(statusPath)
	if err != nil {
		return nil, fmt.Errorf("error requesting notification status %s: %w", notifyID, err)
	}
	if resp.IsError() {
		return nil, domainNotify.NewError(resp.StatusCode(), failure.Errors)
	}
	return &domainNotify.StatusResponse{ID: out.ID, Status: out.Status}, nil
}

func (c *Client) send(ctx context.Context, path string, body interface{}) (*domainNotify.SendResponse, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out sendResult
	var failure errorBody
	resp, err := r.SetBody(body).
		SetResult(&out).
		SetError(&failure).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("error calling notify %s: %w", path, err)
	}
	if resp.IsError() {
		c.logger.WithFields(logrus.Fields{"path": path, "status": resp.StatusCode()}).Debug("Notify rejected request")
		return nil, domainNotify.NewError(resp.StatusCode(), failure.Errors)
	}
	return &domainNotify.SendResponse{Status: resp.StatusCode(), ID: out.ID}, nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

// token signs a fresh HS256 JWT. Notify rejects tokens older than 30 seconds
// so one is minted per request.
func (c *Client) token() (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: c.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("error creating notify token signer: %w", err)
	}
	claims := jwt.Claims{
		Issuer:   c.serviceID,
		IssuedAt: jwt.NewNumericDate(c.now()),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("error signing notify token: %w", err)
	}
	return token, nil
}
