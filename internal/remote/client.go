package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Ravenshaw3/recollect/internal/adventure"
)

// Typed failure kinds so callers can tell transport failures apart from
// storage failures without string matching.
var (
	// ErrUnreachable wraps network-level failures (no route, DNS, timeout).
	ErrUnreachable = errors.New("remote unreachable")
	// ErrRemoteStatus wraps non-2xx responses.
	ErrRemoteStatus = errors.New("remote rejected request")
)

const defaultTimeout = 20 * time.Second

// Client is the HTTP boundary to the sync service. It performs no retries;
// the upload queue decides what a failed item means.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL swaps the endpoint, used when the user switches remote
// profiles.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type apiResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CreateAdventure uploads the adventure envelope and returns the id the
// remote assigned, or 0 when the response carries none.
func (c *Client) CreateAdventure(ctx context.Context, adv adventure.Adventure) (int64, error) {
	body, err := json.Marshal(adv)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/adventures", nil, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, nil
	}
	return out.ID, nil
}

func (c *Client) Adventures(ctx context.Context) ([]adventure.Adventure, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/adventures", nil, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var advs []adventure.Adventure
	if err := json.NewDecoder(resp.Body).Decode(&advs); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrRemoteStatus, err)
	}
	return advs, nil
}

func (c *Client) Adventure(ctx context.Context, id int64) (adventure.Adventure, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/adventures/"+strconv.FormatInt(id, 10), nil, "", nil)
	if err != nil {
		return adventure.Adventure{}, err
	}
	defer resp.Body.Close()

	var adv adventure.Adventure
	if err := json.NewDecoder(resp.Body).Decode(&adv); err != nil {
		return adventure.Adventure{}, fmt.Errorf("%w: malformed body: %v", ErrRemoteStatus, err)
	}
	return adv, nil
}

func (c *Client) DeleteAdventure(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/adventures/"+strconv.FormatInt(id, 10), nil, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AddWaypoint posts one waypoint under the remote adventure id.
func (c *Client) AddWaypoint(ctx context.Context, adventureID int64, wp adventure.Waypoint) error {
	return c.postEntity(ctx, "/api/waypoints", adventureID, wp)
}

func (c *Client) AddNote(ctx context.Context, adventureID int64, n adventure.Note) error {
	return c.postEntity(ctx, "/api/notes", adventureID, n)
}

func (c *Client) postEntity(ctx context.Context, path string, adventureID int64, entity any) error {
	body, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	query := url.Values{"adventureId": {strconv.FormatInt(adventureID, 10)}}
	resp, err := c.do(ctx, http.MethodPost, path, query, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UploadMedia streams a local media file as multipart form data under the
// "file" field.
func (c *Client) UploadMedia(ctx context.Context, adventureID int64, m adventure.MediaItem) error {
	f, err := os.Open(m.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(m.FilePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	query := url.Values{"adventureId": {strconv.FormatInt(adventureID, 10)}}
	if m.Lat != nil {
		query.Set("lat", strconv.FormatFloat(*m.Lat, 'f', -1, 64))
	}
	if m.Lng != nil {
		query.Set("lng", strconv.FormatFloat(*m.Lng, 'f', -1, 64))
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/media/upload-"+string(m.Kind), query, mw.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrRemoteStatus, resp.StatusCode)
	}
	return resp, nil
}
