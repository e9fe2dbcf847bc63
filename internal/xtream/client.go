package xtream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog/log"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
)

// Xtream player_api actions used by the proxy.
const (
	actionGetLiveCategories = "get_live_categories"
	actionGetLiveStreams    = "get_live_streams"
	actionGetVodCategories  = "get_vod_categories"
	actionGetVodStreams     = "get_vod_streams"
)

const maxResponseBytes = 16 << 20

// Ports probed when the host carries no explicit port. Xtream panels
// commonly answer on one of these two.
var fallbackPorts = []string{"80", "8080"}

// StreamTypes lists the stream kinds the proxy knows how to address.
var StreamTypes = []string{"live", "vod"}

// Account identifies one upstream Xtream subscription. Credentials are
// supplied per request; the broker holds no upstream accounts of its own.
type Account struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Category struct {
	CategoryID   FlexInt `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

type Stream struct {
	StreamID   FlexInt `json:"stream_id"`
	Name       string  `json:"name"`
	StreamIcon string  `json:"stream_icon"`
	CategoryID FlexInt `json:"category_id"`
	URL        string  `json:"url"`
}

// Client calls an upstream Xtream Codes panel so browsers never hit it
// directly (the panel has no CORS headers).
type Client struct {
	userAgent string
	http      *http.Client
}

func NewClient(userAgent string, timeout time.Duration) *Client {
	return &Client{
		userAgent: userAgent,
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (c *Client) GetCategories(ctx context.Context, acct Account, streamType string) ([]Category, error) {
	action := actionGetLiveCategories
	if streamType == "vod" {
		action = actionGetVodCategories
	}

	data, _, err := c.action(ctx, acct, action, nil)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0)
	if err := unmarshalList(data, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetStreams lists streams and fills in a playable URL on each, built
// against whichever host:port actually answered.
func (c *Client) GetStreams(ctx context.Context, acct Account, streamType, categoryID string) ([]Stream, error) {
	action := actionGetLiveStreams
	extension := "m3u8"
	if streamType == "vod" {
		action = actionGetVodStreams
		extension = "mp4"
	}

	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}

	data, base, err := c.action(ctx, acct, action, params)
	if err != nil {
		return nil, err
	}

	streams := make([]Stream, 0)
	if err := unmarshalList(data, &streams); err != nil {
		return nil, err
	}

	for i := range streams {
		streams[i].URL = StreamURL(base, acct, streams[i].StreamID, extension)
	}
	return streams, nil
}

// StreamURL builds the playable URL for a stream:
// {base}/{username}/{password}/{streamId}.{ext}
func StreamURL(base string, acct Account, streamID FlexInt, extension string) string {
	return fmt.Sprintf("%s/%s/%s/%s.%s",
		strings.TrimRight(base, "/"), acct.Username, acct.Password, streamID, extension)
}

// action calls player_api.php on each candidate base URL until one
// answers, returning the raw JSON body and the base that served it.
func (c *Client) action(ctx context.Context, acct Account, action string, params url.Values) ([]byte, string, error) {
	bases, err := candidateBases(acct.Host)
	if err != nil {
		return nil, "", apperrors.InvalidInput("host", err.Error())
	}

	var lastErr error
	for _, base := range bases {
		data, err := c.fetch(ctx, base, acct, action, params)
		if err != nil {
			log.Debug().
				Err(err).
				Str("base", base).
				Str("action", action).
				Msg("xtream request failed, trying next port")
			lastErr = err
			continue
		}
		return data, base, nil
	}

	if appErr, ok := apperrors.AsAppError(lastErr); ok {
		return nil, "", appErr
	}
	return nil, "", apperrors.External("xtream", lastErr)
}

func (c *Client) fetch(ctx context.Context, base string, acct Account, action string, params url.Values) ([]byte, error) {
	u, err := url.Parse(base + "/player_api.php")
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("username", acct.Username)
	query.Set("password", acct.Password)
	query.Set("action", action)
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the full request URL, credentials included.
		// Strip it so logs and error responses never see the password.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("upstream request failed: %w", urlErr.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	// Panels answer 200 with {"user_info":{"status":"error"}} on bad
	// credentials; sniff that without unmarshalling the whole payload.
	if status, err := jsonparser.GetString(data, "user_info", "status"); err == nil && status == "error" {
		return nil, apperrors.External("xtream", errors.New("upstream rejected credentials"))
	}

	return data, nil
}

func unmarshalList(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.External("xtream", fmt.Errorf("unexpected payload: %w", err))
	}
	return nil
}

// candidateBases normalizes the host into one or more base URLs. A host
// with an explicit port is taken as-is; otherwise the fallback ports
// are probed in order.
func candidateBases(host string) ([]string, error) {
	host = strings.TrimSpace(strings.TrimRight(host, "/"))
	if host == "" {
		return nil, errors.New("empty host")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, errors.New("host has no hostname")
	}

	if u.Port() != "" || u.Scheme == "https" {
		return []string{u.Scheme + "://" + u.Host}, nil
	}

	bases := make([]string, 0, len(fallbackPorts))
	for _, port := range fallbackPorts {
		bases = append(bases, fmt.Sprintf("%s://%s:%s", u.Scheme, u.Hostname(), port))
	}
	return bases, nil
}
