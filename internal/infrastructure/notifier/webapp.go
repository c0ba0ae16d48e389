// Package notifier tells the downstream web application that a converted
// archive is ready.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/juju/loggo"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

var logger = loggo.GetLogger("hanamigration.notifier")

type Config struct {
	AuthURL    string
	WebhookURL string
	Username   string
	Password   string
	RememberMe bool
	Timeout    time.Duration
	RetryCount int
}

type WebApp struct {
	cfg Config
}

type credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type authResponse struct {
	IDToken string `json:"id_token"`
}

type completion struct {
	FileUUID string `json:"file_uuid"`
	S3Link   string `json:"s3_link"`
}

func New(cfg Config) *WebApp {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	return &WebApp{cfg: cfg}
}

// Notify authenticates and then posts the completion webhook. The webhook is
// not attempted when authentication fails.
func (n *WebApp) Notify(ctx context.Context, jobID, resultLocation string) error {
	session := n.newSession()
	defer session.GetClient().CloseIdleConnections()

	token, err := n.authenticate(ctx, session)
	if err != nil {
		return err
	}
	logger.Infof("authenticated against %s for job %s", n.cfg.AuthURL, jobID)

	return n.deliver(ctx, session, token, completion{FileUUID: jobID, S3Link: resultLocation})
}

func (n *WebApp) newSession() *resty.Client {
	return resty.New().
		SetTimeout(n.cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(n.cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504))
		})
}

func (n *WebApp) authenticate(ctx context.Context, session *resty.Client) (string, error) {
	var out authResponse
	resp, err := session.R().
		SetContext(ctx).
		SetBody(credentials{
			Username:   n.cfg.Username,
			Password:   n.cfg.Password,
			RememberMe: n.cfg.RememberMe,
		}).
		SetResult(&out).
		Post(n.cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: auth endpoint returned %s", domain.ErrAuthentication, resp.Status())
	}
	if out.IDToken == "" {
		return "", fmt.Errorf("%w: no id_token received", domain.ErrAuthentication)
	}
	return out.IDToken, nil
}

func (n *WebApp) deliver(ctx context.Context, session *resty.Client, token string, payload completion) error {
	resp, err := session.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		Post(n.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationDelivery, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: webhook returned %s", domain.ErrNotificationDelivery, resp.Status())
	}

	logger.Infof("webhook response for job %s: %s %s", payload.FileUUID, resp.Status(), resp.String())
	return nil
}
