package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

type RestyClient struct {
	client *resty.Client
}

type Option func(*resty.Client)

// WithRetry retries transport errors and 5xx responses.
func WithRetry(count int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(count).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}
}

func WithHeader(key, value string) Option {
	return func(c *resty.Client) {
		c.SetHeader(key, value)
	}
}

func New(baseURL string, timeout time.Duration, bearerToken string, opts ...Option) HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if bearerToken != "" {
		client.SetAuthToken(bearerToken)
	}
	for _, opt := range opts {
		opt(client)
	}

	return &RestyClient{client: client}
}

func toBaseResponse(resp *resty.Response) *BaseResponse {
	if resp == nil {
		return &BaseResponse{}
	}
	return &BaseResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}
}

func (rc *RestyClient) request(ctx context.Context, headers map[string]string, result interface{}) *resty.Request {
	req := rc.client.R().SetContext(ctx)
	if result != nil {
		req.SetResult(result)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}
	return req
}

// GET request with optional query params
func (rc *RestyClient) Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.request(ctx, headers, result)
	if queryParams != nil {
		req.SetQueryParams(queryParams)
	}

	resp, err := req.Get(endpoint)
	return toBaseResponse(resp), err
}

// POST request with body
func (rc *RestyClient) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	resp, err := rc.request(ctx, headers, result).SetBody(body).Post(endpoint)
	return toBaseResponse(resp), err
}

// POST request with body and query params
func (rc *RestyClient) PostWithQuery(ctx context.Context, endpoint string, queryParams map[string]string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.request(ctx, headers, result).SetBody(body)
	if queryParams != nil {
		req.SetQueryParams(queryParams)
	}

	resp, err := req.Post(endpoint)
	return toBaseResponse(resp), err
}

// PUT request
func (rc *RestyClient) Put(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	resp, err := rc.request(ctx, headers, result).SetBody(body).Put(endpoint)
	return toBaseResponse(resp), err
}
