// Package queueclient is the dashboard side of the clinic queue protocol.
// It wraps the REST API with explicit deadlines and keeps a local board in sync
// through a realtime listener backed by a reconciling poll.
package queueclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/pkg/apperror"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRetries   = 2
	DefaultRetryWait = 500 * time.Millisecond
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// Client talks to the /api surface. Every call is bounded by Config.Timeout
// and by the caller's context, whichever ends first.
type Client struct {
	http    *resty.Client
	baseURL string
	timeout time.Duration
	log     *logrus.Logger

	mu    sync.RWMutex
	token string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func New(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL+"/api").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4*cfg.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryIdempotent)

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		timeout: cfg.Timeout,
		log:     log,
	}
}

// retryIdempotent retries transient failures of reads and deletes only.
// A retried registration would reissue the patient's code.
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodDelete:
	default:
		return false
	}
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	return resp.StatusCode() == http.StatusServiceUnavailable
}

// SetToken sets the bearer token sent with staff requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return apperror.Transient(fmt.Sprintf("%s %s failed", method, path), err)
	}

	var env envelope
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			if resp.IsError() {
				return statusError(resp.StatusCode(), resp.Status())
			}
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}

	if resp.IsError() || (len(resp.Body()) > 0 && !env.Success) {
		message := env.Message
		if message == "" {
			message = resp.Status()
		}
		return statusError(resp.StatusCode(), message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func statusError(status int, message string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.Validation(message)
	case http.StatusUnauthorized:
		return apperror.Unauthorized(message)
	case http.StatusForbidden:
		return apperror.Forbidden(message)
	case http.StatusNotFound:
		return apperror.NotFound(message)
	case http.StatusConflict:
		return apperror.Conflict(message)
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway, http.StatusTooManyRequests:
		return apperror.Transient(message, nil)
	}
	return apperror.New(apperror.KindInternal, message)
}

// Login authenticates a staff user and keeps the access token for later calls
func (c *Client) Login(ctx context.Context, username, password string) (*dto.TokenResponse, error) {
	var tokens dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Username: username, Password: password}, &tokens); err != nil {
		return nil, err
	}
	c.SetToken(tokens.AccessToken)
	return &tokens, nil
}

func (c *Client) ListActive(ctx context.Context) (*dto.BoardResponse, error) {
	var board dto.BoardResponse
	if err := c.do(ctx, http.MethodGet, "/recepcion/pacientes", nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *Client) RegisterTicket(ctx context.Context, req *dto.RegisterTicketRequest) (*dto.RegisterTicketResponse, error) {
	var res dto.RegisterTicketResponse
	if err := c.do(ctx, http.MethodPost, "/pacientes/registrar", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) FindByCode(ctx context.Context, code string) (*dto.TicketResponse, error) {
	var ticket dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/recepcion/paciente/"+code, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// PermanentlyDelete is safe to retry: an already deleted ticket reports Deleted=false
func (c *Client) PermanentlyDelete(ctx context.Context, id uuid.UUID) (*dto.DeleteTicketResponse, error) {
	var res dto.DeleteTicketResponse
	if err := c.do(ctx, http.MethodDelete, "/recepcion/paciente/"+id.String(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) MoveToTrash(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	var ticket dto.TicketResponse
	if err := c.do(ctx, http.MethodPost, "/recepcion/paciente/"+id.String()+"/papelera", nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) Restore(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	var ticket dto.TicketResponse
	if err := c.do(ctx, http.MethodPost, "/recepcion/paciente/"+id.String()+"/restaurar", nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) ListTrash(ctx context.Context) ([]dto.TicketResponse, error) {
	var tickets []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/recepcion/papelera", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) ListDoctors(ctx context.Context) (*dto.DoctorListResponse, error) {
	var doctors dto.DoctorListResponse
	if err := c.do(ctx, http.MethodGet, "/medicos", nil, &doctors); err != nil {
		return nil, err
	}
	return &doctors, nil
}

func (c *Client) CreateDoctor(ctx context.Context, req *dto.CreateDoctorRequest) (*dto.DoctorResponse, error) {
	var doctor dto.DoctorResponse
	if err := c.do(ctx, http.MethodPost, "/admin/medicos", req, &doctor); err != nil {
		return nil, err
	}
	return &doctor, nil
}

// Display device calls are public

func (c *Client) InitDevice(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error) {
	var status dto.DeviceStatusResponse
	if err := c.do(ctx, http.MethodPost, "/screen/init", dto.DeviceRequest{DeviceFingerprint: fingerprint}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) DeviceStatus(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error) {
	var status dto.DeviceStatusResponse
	if err := c.do(ctx, http.MethodPost, "/screen/status", dto.DeviceRequest{DeviceFingerprint: fingerprint}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
