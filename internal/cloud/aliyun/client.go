// Package aliyun implements the cloud adapter for Alibaba Cloud ECS using
// the SDK's common request API.
package aliyun

import (
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk"
	sdkerrors "github.com/aliyun/alibaba-cloud-sdk-go/sdk/errors"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/responses"
	"go.uber.org/zap"
	"yunion.io/x/jsonutils"
	"yunion.io/x/pkg/errors"

	"github.com/emaland/cmp/internal/cloud"
)

const (
	DefaultRegion   = "cn-hangzhou"
	DefaultEndpoint = "ecs.aliyuncs.com"

	ecsAPIVersion = "2014-05-26"
)

// caller issues one ECS API action and returns the parsed body.
type caller interface {
	call(ctx context.Context, action string, params map[string]string) (jsonutils.JSONObject, error)
}

type sdkCaller struct {
	client *sdk.Client
	domain string
}

func (c *sdkCaller) call(ctx context.Context, action string, params map[string]string) (jsonutils.JSONObject, error) {
	req := requests.NewCommonRequest()
	req.Method = requests.POST
	req.Scheme = requests.HTTPS
	req.Domain = c.domain
	req.Version = ecsAPIVersion
	req.ApiName = action
	for k, v := range params {
		req.QueryParams[k] = v
	}

	type result struct {
		resp *responses.CommonResponse
		err  error
	}
	// The SDK takes no context; the call runs on its own goroutine and a
	// late result is dropped into the buffered channel.
	done := make(chan result, 1)
	go func() {
		resp, err := processCommonRequest(c.client, req)
		done <- result{resp: resp, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "aliyun %s", action)
	case r = <-done:
	}
	if r.err != nil {
		return nil, translateError(action, r.err)
	}
	body, err := jsonutils.Parse(r.resp.GetHttpContentBytes())
	if err != nil {
		return nil, errors.Wrapf(err, "aliyun %s: parse response", action)
	}
	return body, nil
}

func processCommonRequest(client *sdk.Client, req *requests.CommonRequest) (resp *responses.CommonResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("ProcessCommonRequest panic: %v", r)
		}
	}()
	return client.ProcessCommonRequest(req)
}

// VendorError is an ECS API error response.
type VendorError struct {
	Action     string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("aliyun %s: %s: %s", e.Action, e.Code, e.Message)
}

// Is lets callers match disk category rejections with
// errors.Is(err, cloud.ErrUnsupportedDiskCategory).
func (e *VendorError) Is(target error) bool {
	return target == cloud.ErrUnsupportedDiskCategory && isUnsupportedDiskCategory(e.Code)
}

func isUnsupportedDiskCategory(code string) bool {
	c := strings.ToLower(code)
	return strings.Contains(c, "systemdiskcategory") || strings.Contains(c, "systemdisk.category")
}

func translateError(action string, err error) error {
	if se, ok := err.(*sdkerrors.ServerError); ok {
		return &VendorError{
			Action:     action,
			Code:       se.ErrorCode(),
			Message:    se.Message(),
			HTTPStatus: se.HttpStatus(),
		}
	}
	return errors.Wrapf(err, "aliyun %s", action)
}

// Client is the ECS adapter. It is safe for concurrent use.
type Client struct {
	api           caller
	defaultRegion string
	log           *zap.Logger
}

// NewClient builds an adapter signing requests with the given access key.
func NewClient(creds cloud.Credentials, log *zap.Logger) (*Client, error) {
	if creds.AccessKeyID == "" || creds.AccessKeySecret == "" {
		return nil, errors.Error("aliyun: access key id and secret are required")
	}
	if err := instanceTypeFields.validate(requiredInstanceTypeFields...); err != nil {
		return nil, err
	}
	if err := availabilityFields.validate("instance_type_id"); err != nil {
		return nil, err
	}
	sc, err := sdk.NewClientWithAccessKey(DefaultRegion, creds.AccessKeyID, creds.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun: new client")
	}
	domain := creds.Endpoint
	if domain == "" {
		domain = DefaultEndpoint
	}
	return newClient(&sdkCaller{client: sc, domain: domain}, log), nil
}

func newClient(api caller, log *zap.Logger) *Client {
	return &Client{api: api, defaultRegion: DefaultRegion, log: log.With(zap.String("vendor", "aliyun"))}
}

// Factory returns a cloud.Factory producing aliyun adapters.
func Factory(log *zap.Logger) cloud.Factory {
	return func(ctx context.Context, creds cloud.Credentials) (cloud.Adapter, error) {
		return NewClient(creds, log)
	}
}

// Validate checks the credentials with a cheap DescribeRegions call.
func (c *Client) Validate(ctx context.Context) error {
	_, err := c.api.call(ctx, "DescribeRegions", nil)
	return err
}

var _ cloud.Adapter = (*Client)(nil)
