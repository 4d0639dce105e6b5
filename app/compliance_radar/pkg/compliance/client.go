package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

// Options 客户端参数
type Options struct {
	InternalBaseURL string
	PublicBaseURL   string
	APIKey          string
	Status          string
	HTTPClient      *http.Client
	Limiter         *rate.Limiter
	Logger          logrus.FieldLogger
}

// Client 合规告警 API 客户端：内部接口提供 ID 列表，公共接口提供详情
type Client struct {
	internalURL string
	publicURL   string
	apiKey      string
	status      string
	client      *http.Client
	limiter     *rate.Limiter
	log         logrus.FieldLogger
}

// NewClient 创建客户端
func NewClient(opts Options) *Client {
	c := &Client{
		internalURL: opts.InternalBaseURL,
		publicURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		apiKey:      opts.APIKey,
		status:      opts.Status,
		client:      opts.HTTPClient,
		limiter:     opts.Limiter,
		log:         opts.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Ensure Client implements source.Provider
var _ source.Provider = (*Client)(nil)

// IdentifiersResponse 内部接口的列表响应
type IdentifiersResponse struct {
	Data []struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// AlertDetail 公共接口的详情响应
type AlertDetail struct {
	AlertID        string  `json:"alert_id"`
	TypeOfAlert    string  `json:"type_of_alert"`
	Status         string  `json:"status"`
	AssignedTo     string  `json:"assigned_to"`
	CreationDate   string  `json:"creation_date"`
	ResolutionDate *string `json:"resolution_date"`
	ImpactLevel    string  `json:"impact_level"`
	Description    string  `json:"description"`
	Source         string  `json:"source"`
	Priority       int     `json:"priority"`
}

// FetchIdentifiers 调用内部接口获取告警 ID
func (c *Client) FetchIdentifiers(ctx context.Context, limit int, since *time.Time) ([]string, error) {
	u, err := url.Parse(c.internalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", source.ErrSourceUnavailable, err)
	}
	q := u.Query()
	if since != nil {
		q.Set("start_date", model.FormatDate(*since))
	}
	q.Set("status", c.status)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var resp IdentifiersResponse
	if err := c.getJSON(ctx, u.String(), true, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		id, err := rawID(item.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
		}
		ids = append(ids, id)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// FetchDetail 调用公共接口获取单条告警
func (c *Client) FetchDetail(ctx context.Context, id string) (model.AlertRecord, error) {
	endpoint := c.publicURL + "/" + url.PathEscape(id)
	c.log.Debugf("开始请求告警详情: %s", endpoint)

	var detail AlertDetail
	if err := c.getJSON(ctx, endpoint, false, &detail); err != nil {
		return model.AlertRecord{}, fmt.Errorf("%w: %s: %v", source.ErrDetailUnavailable, id, err)
	}

	rec, err := detail.toRecord()
	if err != nil {
		return model.AlertRecord{}, fmt.Errorf("%w: %s: %v", source.ErrDetailUnavailable, id, err)
	}
	if rec.AlertID == "" {
		rec.AlertID = id
	}
	return rec, nil
}

func (d AlertDetail) toRecord() (model.AlertRecord, error) {
	created, err := model.ParseDate(d.CreationDate)
	if err != nil {
		return model.AlertRecord{}, fmt.Errorf("invalid creation_date %q: %w", d.CreationDate, err)
	}

	var resolved *time.Time
	if d.ResolutionDate != nil && *d.ResolutionDate != "" {
		r, err := model.ParseDate(*d.ResolutionDate)
		if err != nil {
			return model.AlertRecord{}, fmt.Errorf("invalid resolution_date %q: %w", *d.ResolutionDate, err)
		}
		resolved = &r
	}

	return model.AlertRecord{
		AlertID:        d.AlertID,
		TypeOfAlert:    d.TypeOfAlert,
		Status:         d.Status,
		AssignedTo:     d.AssignedTo,
		CreationDate:   created,
		ResolutionDate: resolved,
		ImpactLevel:    d.ImpactLevel,
		Description:    d.Description,
		Source:         d.Source,
		Priority:       d.Priority,
	}, nil
}

// getJSON 发起 GET 请求并解码 JSON，auth 为 true 时携带 Bearer Token
func (c *Client) getJSON(ctx context.Context, endpoint string, auth bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("compliance api error (status %d): %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}

// rawID 兼容字符串和数字两种 ID
func rawID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported id value: %s", string(raw))
}
